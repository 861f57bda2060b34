package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/allenjsomb/changer/pkg/processor"
	"github.com/allenjsomb/changer/pkg/workerpool"
	"go.uber.org/zap"
)

// runTransformWorker implements the SUB->PUSH task: it receives every
// message published on PUB (including the pump's own loopback emissions)
// and hands off complete messages to a bounded worker pool for rule
// lookup, regex application, and republication on PUSH.
func (s *Supervisor) runTransformWorker(ctx context.Context) error {
	pool := workerpool.New(runtime.GOMAXPROCS(0))

	for {
		if ctx.Err() != nil {
			pool.Wait()
			return ctx.Err()
		}

		frames, err := s.sockets.Sub.RecvMessageBytes()
		if err != nil {
			pool.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("transform worker receive: %w", err)
		}

		if len(frames) < 3 {
			s.transformDropped.Add(1)
			s.metrics.PumpDropped.WithLabelValues("transform").Inc()
			continue
		}

		s.transformCount.Add(1)
		s.metrics.PumpCount.WithLabelValues("transform").Inc()

		pool.Submit(func() {
			s.handleTransformMessage(frames)
		})
	}
}

// handleTransformMessage looks up a Processor for frames[0] under the
// rule store lock, applies it to frames[2], and if it produced output and
// has a destination, republishes on PUSH as
// [json(dst), id, json(extracted_fields)].
func (s *Supervisor) handleTransformMessage(frames [][]byte) {
	src := string(frames[0])
	id := frames[1]
	payload := string(frames[2])

	s.store.Lookup(src, func(p *processor.Processor, ok bool) {
		if !ok {
			return
		}

		fields, matched := p.Apply(payload)
		if !matched {
			return
		}

		dst := p.Destination()
		if dst == "" {
			return
		}

		dstJSON, err := json.Marshal(dst)
		if err != nil {
			s.logger.Warn("failed to encode destination tag", zap.Error(err))
			return
		}
		payloadJSON, err := json.Marshal(fields)
		if err != nil {
			s.logger.Warn("failed to encode transformed payload", zap.Error(err))
			return
		}

		if err := s.sockets.Push.SendMessage(dstJSON, id, payloadJSON); err != nil {
			s.logger.Debug("transform worker push failed", zap.Error(err), zap.Bool("trace", true))
		}
	})
}
