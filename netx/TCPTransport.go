package netx

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

// TCPTransport - A TCP specific Transport implementation. Messages are
// length-prefixed frames; outbound sends are queued and drained by a pool of
// dispatcher goroutines so callers never block on the network.
type TCPTransport struct {
	ln       net.Listener
	conns    sync.Map
	closed   chan struct{}
	outQueue chan *outbound
	log      *zap.Logger
}

// outbound - encapsulates outbound message data.
type outbound struct {
	to   string
	data []byte
}

func NewTCP(workerCount int, log *zap.Logger) *TCPTransport {
	if workerCount <= 0 {
		workerCount = 4
	}
	if log == nil {
		log = zap.NewNop()
	}

	t := &TCPTransport{
		closed:   make(chan struct{}),
		outQueue: make(chan *outbound, 256),
		log:      log,
	}

	//start outbound (message) processing
	for i := 0; i < workerCount; i++ {
		go t.outQueueDispatcher()
	}

	return t
}

func (t *TCPTransport) Listen(addr string, handler MessageHandler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	t.ln = ln
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				select {
				case <-t.closed:
					return
				default:
				}
				continue
			}
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					lenb := make([]byte, 4)
					if _, err := io.ReadFull(r, lenb); err != nil {
						return
					}
					n := binary.BigEndian.Uint32(lenb)
					buf := make([]byte, n)
					if _, err := io.ReadFull(r, buf); err != nil {
						return
					}
					handler(conn.RemoteAddr().String(), buf)
				}
			}(c)
		}
	}()
	return nil
}

// Send - Queues the provided (message) data for async dispatch to the
// provided address and returns immediately.
func (t *TCPTransport) Send(to string, data []byte) error {
	select {
	case <-t.closed:
		return errors.New("transport closed")
	case t.outQueue <- &outbound{to, data}:
		return nil
	default:
		return errors.New("send queue full")
	}
}

func (t *TCPTransport) Close() error {
	close(t.closed)
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.conns.Range(func(_, v any) bool { v.(net.Conn).Close(); return true })
	return nil
}

// sendSync sends provided data to the specified address, synchronously,
// reusing a pooled connection where one exists.
func (t *TCPTransport) sendSync(address string, data []byte) error {
	v, ok := t.conns.Load(address)
	var c net.Conn
	var err error
	if ok {
		c = v.(net.Conn)
	} else {
		c, err = net.Dial("tcp", address)
		if err != nil {
			return err
		}
		t.conns.Store(address, c)
	}
	w := bufio.NewWriter(c)
	lenb := make([]byte, 4)
	binary.BigEndian.PutUint32(lenb, uint32(len(data)))
	if _, err := w.Write(lenb); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.Flush()
}

func (t *TCPTransport) outQueueDispatcher() {
	for {
		select {
		case <-t.closed:
			return

		case job := <-t.outQueue:
			if err := t.sendSync(job.to, job.data); err != nil {
				// a broken pooled connection is dropped so the next send redials
				t.conns.Delete(job.to)
				t.log.Warn("outbound send failed",
					zap.String("to", job.to),
					zap.Error(err))
			}
		}
	}
}
