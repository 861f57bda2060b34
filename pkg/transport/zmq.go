package transport

import (
	"fmt"
	"sync"

	zmq "github.com/pebbe/zmq4"
)

// mutexSocket wraps a zmq4 socket with a mutex held for the entire
// duration of a recv or send, since the underlying socket object is not
// safe for concurrent use by multiple goroutines.
type mutexSocket struct {
	mu   sync.Mutex
	sock *zmq.Socket
}

func (m *mutexSocket) RecvMessageBytes() ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sock.RecvMessageBytes(0)
}

func (m *mutexSocket) SendMessage(frames ...[]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := make([]interface{}, len(frames))
	for i, f := range frames {
		parts[i] = f
	}
	_, err := m.sock.SendMessage(parts...)
	return err
}

func (m *mutexSocket) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sock.Close()
}

// NewZMQSet builds the fixed four-socket topology over ZeroMQ: an ingress
// PULL and egress PUB bound on ip, plus an internal loopback PUSH
// connected into PULL and an internal loopback SUB connected onto PUB.
// Sockets are created and wired in the order PULL, PUB, PUSH, SUB.
func NewZMQSet(ip string, pullPort, pubPort int, rhwm, shwm int) (*Set, error) {
	pullURL := fmt.Sprintf("tcp://%s:%d", ip, pullPort)
	pubURL := fmt.Sprintf("tcp://%s:%d", ip, pubPort)

	pull, err := newBoundSocket(zmq.PULL, pullURL, rhwm, false)
	if err != nil {
		return nil, fmt.Errorf("binding pull socket on %s: %w", pullURL, err)
	}

	pub, err := newBoundSocket(zmq.PUB, pubURL, shwm, false)
	if err != nil {
		pull.Close()
		return nil, fmt.Errorf("binding pub socket on %s: %w", pubURL, err)
	}

	push, err := newConnectedSocket(zmq.PUSH, pullURL, shwm, false)
	if err != nil {
		pull.Close()
		pub.Close()
		return nil, fmt.Errorf("connecting push socket to %s: %w", pullURL, err)
	}

	sub, err := newConnectedSocket(zmq.SUB, pubURL, rhwm, true)
	if err != nil {
		pull.Close()
		pub.Close()
		push.Close()
		return nil, fmt.Errorf("connecting sub socket to %s: %w", pubURL, err)
	}

	return &Set{Pull: pull, Pub: pub, Push: push, Sub: sub}, nil
}

func newBoundSocket(t zmq.Type, url string, hwm int, subscribeAll bool) (*mutexSocket, error) {
	sock, err := zmq.NewSocket(t)
	if err != nil {
		return nil, err
	}
	if err := setHWM(sock, t, hwm); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Bind(url); err != nil {
		sock.Close()
		return nil, err
	}
	return &mutexSocket{sock: sock}, nil
}

func newConnectedSocket(t zmq.Type, url string, hwm int, subscribeAll bool) (*mutexSocket, error) {
	sock, err := zmq.NewSocket(t)
	if err != nil {
		return nil, err
	}
	if err := setHWM(sock, t, hwm); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.Connect(url); err != nil {
		sock.Close()
		return nil, err
	}
	if subscribeAll {
		if err := sock.SetSubscribe(""); err != nil {
			sock.Close()
			return nil, err
		}
	}
	return &mutexSocket{sock: sock}, nil
}

func setHWM(sock *zmq.Socket, t zmq.Type, hwm int) error {
	switch t {
	case zmq.PULL, zmq.SUB:
		return sock.SetRcvhwm(hwm)
	case zmq.PUB, zmq.PUSH:
		return sock.SetSndhwm(hwm)
	default:
		return nil
	}
}
