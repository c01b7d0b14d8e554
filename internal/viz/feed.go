package viz

import (
	"context"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// Sample is a frame detached from the driver's reusable buffers.
type Sample struct {
	State  dynamo.State
	Rx, Ry []float64
}

// Feed is an observer that forwards copies of every frame to the live view.
// Sends block while the view is behind and give up once ctx is done.
type Feed struct {
	ctx context.Context
	ch  chan Sample
}

func NewFeed(ctx context.Context, buffer int) *Feed {
	return &Feed{ctx: ctx, ch: make(chan Sample, buffer)}
}

func (f *Feed) OnFrame(fr dynamo.Frame) error {
	s := Sample{
		State: fr.State,
		Rx:    append([]float64(nil), fr.Rx...),
		Ry:    append([]float64(nil), fr.Ry...),
	}
	select {
	case f.ch <- s:
		return nil
	case <-f.ctx.Done():
		return f.ctx.Err()
	}
}

func (f *Feed) Samples() <-chan Sample { return f.ch }

// Close ends the stream; call it once the run has returned.
func (f *Feed) Close() { close(f.ch) }
