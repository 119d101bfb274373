package session

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestConn(t *testing.T) *wsConn {
	t.Helper()
	srv := newWSServer(t)
	ws, _, err := websocket.DefaultDialer.Dial(srv.url(), nil)
	require.NoError(t, err)
	return newWSConn(ws)
}

func TestWSConnSendAfterCloseFails(t *testing.T) {
	c := dialTestConn(t)
	c.Close()
	assert.Error(t, c.TrySend([]byte(`{"event":"typing"}`)))
}

// Teardown paths can race the read pump's own close, so a second Close
// must be a no-op rather than a double channel close.
func TestWSConnCloseIdempotent(t *testing.T) {
	c := dialTestConn(t)
	c.Close()
	c.Close()
}

func TestWSConnBackpressure(t *testing.T) {
	c := dialTestConn(t)
	defer c.Close()

	// No writePump running, so the queue fills and overflow is
	// reported instead of blocking.
	var err error
	for i := 0; i <= sendQueueSize; i++ {
		err = c.TrySend([]byte("x"))
	}
	assert.ErrorIs(t, err, ErrBackpressure)
}
