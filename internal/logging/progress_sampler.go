package logging

// ProgressSampler picks which batch ticks deserve a log line: the first tick
// of a label, each tick entering a new percent step, and completion.
type ProgressSampler struct {
	step  int
	label string
	last  int
}

// NewProgressSampler samples every stepPercent percent. Values outside
// 1..100 fall back to 10.
func NewProgressSampler(stepPercent int) *ProgressSampler {
	if stepPercent <= 0 || stepPercent > 100 {
		stepPercent = 10
	}
	return &ProgressSampler{step: stepPercent, last: -1}
}

// Percent returns done as a whole percentage of total. An empty batch counts
// as complete.
func Percent(done, total int) int {
	switch {
	case total <= 0, done >= total:
		return 100
	case done <= 0:
		return 0
	default:
		return done * 100 / total
	}
}

// ShouldLog reports whether done/total under label should be logged. A new
// label starts sampling over. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(label string, done, total int) bool {
	if s == nil {
		return true
	}
	if label != s.label {
		s.label = label
		s.last = -1
	}
	slot := Percent(done, total) / s.step
	if slot <= s.last {
		return false
	}
	s.last = slot
	return true
}

// Reset forgets the current label.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.label = ""
	s.last = -1
}
