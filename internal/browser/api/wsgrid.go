package api

import "sqlite-browser/internal/browser/hub"

// Grid names as seen by clients.
const (
	GridSchema  = "schema"
	GridBrowse  = "browse"
	GridResults = "results"
)

// wsGrid is a grid.Sink whose mutations are sent to a browser client. Its
// mutators run on the client's loop.
type wsGrid struct {
	name   string
	client *hub.Client
	rows   int
}

func newWSGrid(name string, c *hub.Client) *wsGrid {
	return &wsGrid{name: name, client: c}
}

func (g *wsGrid) Clear() {
	g.rows = 0
	g.send(hub.Message{Op: hub.OpClear})
}

func (g *wsGrid) AddColumn(name string) {
	g.send(hub.Message{Op: hub.OpAddColumn, Name: name})
}

func (g *wsGrid) AddRow() int {
	idx := g.rows
	g.rows++
	g.send(hub.Message{Op: hub.OpAddRow, Row: &idx})
	return idx
}

func (g *wsGrid) SetCell(row, col int, value any) {
	g.send(hub.Message{Op: hub.OpSetCell, Row: &row, Col: &col, Value: value})
}

func (g *wsGrid) Invoke(fn func()) error {
	return g.client.Loop().Invoke(fn)
}

func (g *wsGrid) send(msg hub.Message) {
	msg.Type = hub.TypeGrid
	msg.Grid = g.name
	// A failed write surfaces as a read error on the connection, which ends the shell.
	_ = g.client.Send(msg)
}
