package transport

import "sync"

type pipeState struct {
	done chan struct{}
	once sync.Once
}

// pipeConn is one end of an in-memory connection.
type pipeConn struct {
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
}

// Pipe returns two connected in-memory endpoints. Each direction buffers
// up to 64 messages before WriteMessage blocks. Closing either side closes
// both.
func Pipe() (Conn, Conn) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	state := &pipeState{done: make(chan struct{})}
	return &pipeConn{in: ba, out: ab, state: state}, &pipeConn{in: ab, out: ba, state: state}
}

func (p *pipeConn) ReadMessage() ([]byte, error) {
	// Drain what the peer already wrote before reporting closure.
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.state.done:
		return nil, ErrClosed
	}
}

func (p *pipeConn) WriteMessage(data []byte) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}
	msg := append([]byte(nil), data...)
	select {
	case p.out <- msg:
		return nil
	case <-p.state.done:
		return ErrClosed
	}
}

func (p *pipeConn) Close() error {
	p.state.once.Do(func() { close(p.state.done) })
	return nil
}
