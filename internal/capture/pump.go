package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/scanlock/internal/engine"
	"github.com/sells-group/scanlock/internal/model"
	"github.com/sells-group/scanlock/internal/ocr"
)

// Observer receives recognized blocks. The engine satisfies this.
type Observer interface {
	Observe(blocks []model.Block) error
}

// Pump pulls frames from a source at a fixed rate and pushes recognition
// results into an observer. Recognition is never concurrent with itself:
// frames arriving while a recognition call is outstanding are dropped, so
// a slow provider degrades the effective frame rate instead of queueing
// stale frames.
type Pump struct {
	source   Source
	provider ocr.Provider
	observer Observer
	limiter  *rate.Limiter

	inflight atomic.Bool
	wg       sync.WaitGroup
}

// NewPump builds a pump running at framesPerSecond. Rates at or below
// zero fall back to 10 frames per second.
func NewPump(source Source, provider ocr.Provider, observer Observer, framesPerSecond float64) *Pump {
	if framesPerSecond <= 0 {
		framesPerSecond = 10
	}
	return &Pump{
		source:   source,
		provider: provider,
		observer: observer,
		limiter:  rate.NewLimiter(rate.Limit(framesPerSecond), 1),
	}
}

// Run pumps frames until the context is cancelled, the source is
// exhausted, or the observer reports no active session. It blocks until
// any in-flight recognition has drained.
func (p *Pump) Run(ctx context.Context) error {
	defer p.wg.Wait()

	var stopped atomic.Bool
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil
		}
		if stopped.Load() {
			return nil
		}

		frame, err := p.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		// One recognition at a time. A busy provider means this frame
		// is dropped, not queued.
		if !p.inflight.CompareAndSwap(false, true) {
			continue
		}

		p.wg.Add(1)
		go func(frame model.Frame) {
			defer p.wg.Done()
			defer p.inflight.Store(false)

			blocks, err := p.provider.Recognize(ctx, frame.Path)
			if err != nil {
				if ctx.Err() == nil {
					zap.L().Warn("recognition failed",
						zap.String("frame", frame.Path),
						zap.Error(err))
				}
				return
			}
			if len(blocks) == 0 {
				return
			}
			if err := p.observer.Observe(blocks); err != nil {
				if errors.Is(err, engine.ErrNotScanning) {
					stopped.Store(true)
					return
				}
				zap.L().Warn("observation rejected", zap.Error(err))
			}
		}(frame)
	}
}
