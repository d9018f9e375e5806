package logging

// ProgressSampler thins byte progress updates down to one log line per
// percentage step. A change of total starts a new batch, as does reaching
// 100%.
type ProgressSampler struct {
	step  int64
	total int64
	last  int64
}

// NewProgressSampler returns a sampler emitting every stepPercent percent;
// values outside 1..100 fall back to 10.
func NewProgressSampler(stepPercent int) *ProgressSampler {
	if stepPercent < 1 || stepPercent > 100 {
		stepPercent = 10
	}
	return &ProgressSampler{step: int64(stepPercent), last: -1}
}

// ShouldLog reports whether the update (loaded of total bytes) crosses into
// a new step. Updates with an unknown total are never logged; a nil sampler
// logs everything.
func (s *ProgressSampler) ShouldLog(loaded, total int64) bool {
	if s == nil {
		return true
	}
	if total <= 0 {
		return false
	}
	if total != s.total {
		s.total, s.last = total, -1
	}
	loaded = max(0, min(loaded, total))
	bucket := loaded * 100 / total / s.step
	if loaded == total {
		s.total, s.last = 0, -1
		return true
	}
	if bucket <= s.last {
		return false
	}
	s.last = bucket
	return true
}
