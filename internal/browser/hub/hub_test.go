package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := NewHub()
	upgrader := websocket.Upgrader{}
	registered := make(chan *Client, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn)
		h.Register(c)
		registered <- c
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	a, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer a.Close()
	ca := <-registered

	b, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer b.Close()
	cb := <-registered
	assert.Equal(t, 2, h.Count())

	h.Broadcast(Message{Type: TypeStatus, Text: "hello"})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		for {
			var m Message
			require.NoError(t, conn.ReadJSON(&m))
			if m.Type == TypeStatus {
				assert.Equal(t, "hello", m.Text)
				break
			}
		}
	}

	h.Unregister(ca)
	h.Unregister(ca)
	assert.Equal(t, 1, h.Count())

	// A client whose loop is gone is dropped on the next broadcast.
	cb.Loop().Stop()
	h.Broadcast(Message{Type: TypeStatus, Text: "again"})
	assert.Equal(t, 0, h.Count())
}
