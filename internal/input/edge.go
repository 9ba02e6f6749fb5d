// Package input turns level-sampled controller buttons into discrete transitions.
package input

// Edge is the transition observed on one sample.
type Edge int

const (
	Idle Edge = iota
	Pressed
	Held
	Released
)

func (e Edge) String() string {
	switch e {
	case Pressed:
		return "pressed"
	case Held:
		return "held"
	case Released:
		return "released"
	default:
		return "idle"
	}
}

// EdgeDetector remembers the previous level of a single button.
type EdgeDetector struct {
	prev bool
}

// Update feeds the current level and returns the transition since the last call.
func (d *EdgeDetector) Update(down bool) Edge {
	prev := d.prev
	d.prev = down
	switch {
	case down && !prev:
		return Pressed
	case down && prev:
		return Held
	case !down && prev:
		return Released
	default:
		return Idle
	}
}

// Down reports the last level fed in.
func (d *EdgeDetector) Down() bool {
	return d.prev
}

// Buttons is the controller snapshot for one frame.
type Buttons struct {
	LeftTrigger  bool
	RightTrigger bool
	LeftGrip     bool
	RightGrip    bool
	Fire         bool
}

// Edges is the per-button transition for one frame.
type Edges struct {
	LeftTrigger  Edge
	RightTrigger Edge
	LeftGrip     Edge
	RightGrip    Edge
	Fire         Edge
}

// Controller tracks every button the client reacts to.
type Controller struct {
	leftTrigger, rightTrigger EdgeDetector
	leftGrip, rightGrip       EdgeDetector
	fire                      EdgeDetector
}

// Update advances all detectors by one frame.
func (c *Controller) Update(b Buttons) Edges {
	return Edges{
		LeftTrigger:  c.leftTrigger.Update(b.LeftTrigger),
		RightTrigger: c.rightTrigger.Update(b.RightTrigger),
		LeftGrip:     c.leftGrip.Update(b.LeftGrip),
		RightGrip:    c.rightGrip.Update(b.RightGrip),
		Fire:         c.fire.Update(b.Fire),
	}
}
