package ensemble

import "math"

// StallDetector tracks the boosting training loss and reports when it has
// stopped improving.
type StallDetector struct {
	Rounds          int     // iterations without improvement before stopping
	Tol             float64 // minimum decrease that counts as improvement
	BestLoss        float64
	BestIteration   int
	RoundsNoImprove int
	Enabled         bool
}

// NewStallDetector returns a detector. rounds <= 0 gives a disabled detector.
func NewStallDetector(rounds int, tol float64) *StallDetector {
	if rounds <= 0 {
		return &StallDetector{}
	}
	return &StallDetector{
		Rounds:   rounds,
		Tol:      tol,
		BestLoss: math.Inf(1),
		Enabled:  true,
	}
}

// Update records the loss of an iteration and reports whether to stop.
func (s *StallDetector) Update(iteration int, loss float64) bool {
	if !s.Enabled {
		return false
	}
	if loss < s.BestLoss-s.Tol {
		s.BestLoss = loss
		s.BestIteration = iteration
		s.RoundsNoImprove = 0
	} else {
		s.RoundsNoImprove++
	}
	return s.RoundsNoImprove >= s.Rounds
}
