package core

// Episode tracks the step counter and the sticky end-of-episode flags.
type Episode struct {
	Steps      int
	Terminated bool
	Truncated  bool
}

// Begin starts a fresh episode
func (e *Episode) Begin() {
	e.Steps = 0
	e.Terminated = false
	e.Truncated = false
}

// Close marks the episode as over without a win, forcing a reset before play
func (e *Episode) Close() {
	e.Terminated = true
	e.Truncated = true
}

// Over reports whether further steps are no-ops until the next reset
func (e Episode) Over() bool {
	return e.Terminated || e.Truncated
}
