package hub

// Message types sent to browser clients.
const (
	TypeSchema  = "schema"
	TypeGrid    = "grid"
	TypeStatus  = "status"
	TypeError   = "error"
	TypeExport  = "export"
	TypeClients = "clients"
)

// Grid operations carried by TypeGrid messages.
const (
	OpClear     = "clear"
	OpAddColumn = "add_column"
	OpAddRow    = "add_row"
	OpSetCell   = "set_cell"
)

// Message is one server to client websocket message.
type Message struct {
	Type string `json:"type"`

	// Grid mutations
	Grid  string `json:"grid,omitempty"`
	Op    string `json:"op,omitempty"`
	Name  string `json:"name,omitempty"`
	Row   *int   `json:"row,omitempty"`
	Col   *int   `json:"col,omitempty"`
	Value any    `json:"value,omitempty"`

	// Status and error text
	Text string `json:"text,omitempty"`

	Schema  any      `json:"schema,omitempty"`
	Tables  []string `json:"tables,omitempty"`
	Job     any      `json:"job,omitempty"`
	Clients int      `json:"clients,omitempty"`
}
