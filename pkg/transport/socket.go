// Package transport wires the four-socket topology (ingress PULL, egress
// PUB, loopback PUSH, loopback SUB) that couples external ingestion to
// internal transformation.
package transport

// Socket is the minimal multipart messaging surface the supervisor needs
// from a transport endpoint. It exists so the supervisor and its tests
// depend on this interface rather than directly on a concrete ZeroMQ
// socket type, the same interface-plus-implementation shape the rest of
// this module uses for pluggable transports.
type Socket interface {
	// RecvMessageBytes blocks until a multipart message is available and
	// returns its frames.
	RecvMessageBytes() ([][]byte, error)

	// SendMessage sends frames as a single multipart message, blocking if
	// the endpoint's queue is at its high-water mark.
	SendMessage(frames ...[]byte) error

	// Close releases the underlying transport resource.
	Close() error
}

// Set bundles the four endpoints of the fixed topology described in the
// component design: ingress PULL, egress PUB, internal loopback PUSH (into
// PULL), and internal loopback SUB (on PUB).
type Set struct {
	Pull Socket
	Pub  Socket
	Push Socket
	Sub  Socket
}

// Close closes every socket in the set, returning the first error
// encountered while closing the rest regardless.
func (s *Set) Close() error {
	var first error
	for _, sock := range []Socket{s.Pull, s.Pub, s.Push, s.Sub} {
		if sock == nil {
			continue
		}
		if err := sock.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
