package transport

import (
	"errors"
	"sync"
)

// ErrClosed is returned by FakeSocket operations after Close.
var ErrClosed = errors.New("transport: socket closed")

// FakeSocket is an in-memory Socket used by tests to drive topology and
// supervisor wiring without a live ZeroMQ context. A FakeSocket can be
// wired to fan out every SendMessage to one or more peer sockets'
// inboxes, mirroring a bind/connect relationship.
type FakeSocket struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][][]byte
	sent   [][][]byte
	peers  []*FakeSocket
	closed bool
}

// NewFakeSocket returns an empty, unwired FakeSocket.
func NewFakeSocket() *FakeSocket {
	f := &FakeSocket{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// WireTo registers peer as a recipient of every future SendMessage on f,
// modeling a bind/connect link between two endpoints (PUB bound with SUB
// connected, PULL bound with PUSH connected).
func (f *FakeSocket) WireTo(peer *FakeSocket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers = append(f.peers, peer)
}

// Deliver enqueues frames as a message this socket's RecvMessageBytes
// will eventually return, in FIFO order. Used by tests to simulate an
// external producer writing directly into a PULL socket.
func (f *FakeSocket) Deliver(frames ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, frames)
	f.cond.Signal()
}

func (f *FakeSocket) RecvMessageBytes() ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.queue) == 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed && len(f.queue) == 0 {
		return nil, ErrClosed
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

// SendMessage records frames and delivers them to every peer wired via
// WireTo, modeling a socket fanning messages out to the peers on the other
// end of its bind/connect link (PUB->SUB, PUSH->PULL).
func (f *FakeSocket) SendMessage(frames ...[]byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.sent = append(f.sent, frames)
	peers := append([]*FakeSocket(nil), f.peers...)
	f.mu.Unlock()

	for _, p := range peers {
		p.Deliver(frames...)
	}
	return nil
}

// Sent returns every message passed to SendMessage so far, in order.
func (f *FakeSocket) Sent() [][][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][][]byte(nil), f.sent...)
}

func (f *FakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
	return nil
}

// NewFakeSet builds a Set of FakeSockets wired in the same loopback
// topology as NewZMQSet: Push fans into Pull, and Pub fans into both Sub
// and an externally observable Pub.Sent() log.
func NewFakeSet() *Set {
	pull := NewFakeSocket()
	pub := NewFakeSocket()
	push := NewFakeSocket()
	sub := NewFakeSocket()

	push.WireTo(pull)
	pub.WireTo(sub)

	return &Set{Pull: pull, Pub: pub, Push: push, Sub: sub}
}
