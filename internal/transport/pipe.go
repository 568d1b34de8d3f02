package transport

import (
	"context"
	"sync"
	"time"
)

// PipeEnd is one side of an in-memory datagram link. Datagrams sent on one
// end are received on the other, in order. Like UDP, a send to an end whose
// queue is full or which has been closed is silently lost.
type PipeEnd struct {
	name  string
	inbox chan []byte
	peer  *PipeEnd

	closeOnce sync.Once
	closed    chan struct{}
}

// Pipe returns two connected ends, each able to queue size datagrams.
func Pipe(size int) (*PipeEnd, *PipeEnd) {
	if size <= 0 {
		size = 64
	}
	a := &PipeEnd{name: "pipe:a", inbox: make(chan []byte, size), closed: make(chan struct{})}
	b := &PipeEnd{name: "pipe:b", inbox: make(chan []byte, size), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Send queues a copy of datagram on the peer.
func (p *PipeEnd) Send(ctx context.Context, datagram []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case <-p.peer.closed:
		return nil
	default:
	}
	select {
	case p.peer.inbox <- append([]byte(nil), datagram...):
	default:
	}
	return nil
}

// Receive returns the next datagram sent by the peer.
func (p *PipeEnd) Receive(ctx context.Context) (Datagram, error) {
	select {
	case <-ctx.Done():
		return Datagram{}, ctx.Err()
	case <-p.closed:
		return Datagram{}, ErrClosed
	case b := <-p.inbox:
		return Datagram{Data: b, Peer: p.peer.name, ReceivedAt: time.Now()}, nil
	}
}

// Close unblocks Receive. It is safe to call more than once.
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *PipeEnd) String() string { return p.name }
