package netx

import (
	"errors"
	"sync"
)

// MemoryNetwork - An in-process message fabric connecting MemoryTransport
// instances by address. It gives multi-node tests deterministic, loss-free
// delivery without sockets.
type MemoryNetwork struct {
	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{handlers: map[string]MessageHandler{}}
}

// Transport returns a Transport bound to this network.
func (n *MemoryNetwork) Transport() *MemoryTransport {
	return &MemoryTransport{net: n, closed: make(chan struct{})}
}

func (n *MemoryNetwork) register(addr string, handler MessageHandler) {
	n.mu.Lock()
	n.handlers[addr] = handler
	n.mu.Unlock()
}

func (n *MemoryNetwork) unregister(addr string) {
	n.mu.Lock()
	delete(n.handlers, addr)
	n.mu.Unlock()
}

func (n *MemoryNetwork) deliver(from, to string, data []byte) error {
	n.mu.RLock()
	handler, ok := n.handlers[to]
	n.mu.RUnlock()
	if !ok {
		return errors.New("memory transport: no listener at " + to)
	}

	// Copy so a receiver cannot observe later mutation by the sender, then
	// deliver on a fresh goroutine to mirror real transport asynchrony.
	buf := append([]byte(nil), data...)
	go handler(from, buf)
	return nil
}

// MemoryTransport - A Transport implementation backed by a MemoryNetwork.
type MemoryTransport struct {
	net    *MemoryNetwork
	addr   string
	closed chan struct{}
	once   sync.Once
}

func (t *MemoryTransport) Listen(addr string, handler MessageHandler) error {
	t.addr = addr
	t.net.register(addr, handler)
	return nil
}

func (t *MemoryTransport) Send(to string, data []byte) error {
	select {
	case <-t.closed:
		return errors.New("transport closed")
	default:
	}
	return t.net.deliver(t.addr, to, data)
}

func (t *MemoryTransport) Close() error {
	t.once.Do(func() {
		close(t.closed)
		if t.addr != "" {
			t.net.unregister(t.addr)
		}
	})
	return nil
}
