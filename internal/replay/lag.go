package replay

import "time"

const (
	// MaxFrameLag bounds the replay offset in frames.
	MaxFrameLag = 30
	// MaxRenderLag bounds the render delay in steps.
	MaxRenderLag = 10
	// RenderLagStep is the delay added per render lag step.
	RenderLagStep = 2 * time.Millisecond
)

// LagControl holds the two user-adjustable latency knobs.
// Frame lag selects how far back the replay buffer is read; render lag delays presentation.
type LagControl struct {
	frameLag    int
	renderLag   int
	maxFrameLag int
}

// NewLagControl returns a control whose frame lag never exceeds what a buffer of capacity can serve.
func NewLagControl(capacity int) *LagControl {
	maxLag := capacity - 1
	if maxLag > MaxFrameLag {
		maxLag = MaxFrameLag
	}
	if maxLag < 0 {
		maxLag = 0
	}
	return &LagControl{maxFrameLag: maxLag}
}

func (l *LagControl) FrameLag() int  { return l.frameLag }
func (l *LagControl) RenderLag() int { return l.renderLag }

// SetFrameLag clamps n into [0, max].
func (l *LagControl) SetFrameLag(n int) {
	l.frameLag = clamp(n, 0, l.maxFrameLag)
}

// SetRenderLag clamps n into [0, MaxRenderLag].
func (l *LagControl) SetRenderLag(n int) {
	l.renderLag = clamp(n, 0, MaxRenderLag)
}

func (l *LagControl) IncFrameLag()  { l.SetFrameLag(l.frameLag + 1) }
func (l *LagControl) DecFrameLag()  { l.SetFrameLag(l.frameLag - 1) }
func (l *LagControl) IncRenderLag() { l.SetRenderLag(l.renderLag + 1) }
func (l *LagControl) DecRenderLag() { l.SetRenderLag(l.renderLag - 1) }

// RenderDelay is the presentation delay for the current render lag.
func (l *LagControl) RenderDelay() time.Duration {
	return time.Duration(l.renderLag) * RenderLagStep
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
