package netx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransportDelivers(t *testing.T) {
	fabric := NewMemoryNetwork()

	got := make(chan string, 1)
	recv := fabric.Transport()
	require.NoError(t, recv.Listen("b", func(from string, data []byte) {
		got <- from + ":" + string(data)
	}))

	send := fabric.Transport()
	require.NoError(t, send.Listen("a", func(string, []byte) {}))
	require.NoError(t, send.Send("b", []byte("hello")))

	select {
	case msg := <-got:
		assert.Equal(t, "a:hello", msg)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestMemoryTransportUnknownDestination(t *testing.T) {
	fabric := NewMemoryNetwork()
	tr := fabric.Transport()
	require.NoError(t, tr.Listen("a", func(string, []byte) {}))

	assert.Error(t, tr.Send("nowhere", []byte("x")))
}

func TestMemoryTransportClosedSendFails(t *testing.T) {
	fabric := NewMemoryNetwork()

	tr := fabric.Transport()
	require.NoError(t, tr.Listen("a", func(string, []byte) {}))

	peer := fabric.Transport()
	require.NoError(t, peer.Listen("b", func(string, []byte) {}))

	require.NoError(t, tr.Close())
	assert.Error(t, tr.Send("b", []byte("x")), "send after close must fail")
	assert.Error(t, peer.Send("a", []byte("x")), "closed listener must be unreachable")
}
