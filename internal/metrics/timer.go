package metrics

// TimerPair is a start/end pair of simulator timestamps in microseconds.
// Zero means "unset".
type TimerPair struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// ElapsedMs returns (End-Start)/1000 milliseconds.
//
// Returns 0 when either endpoint is unset or End < Start. Partial and
// out-of-order runs are expected input, so this never fails and is never
// negative.
func (p TimerPair) ElapsedMs() float64 {
	if p.Start == 0 || p.End == 0 || p.End < p.Start {
		return 0
	}
	return float64(p.End-p.Start) / 1000.0
}

// IsSet reports whether both endpoints are recorded.
func (p TimerPair) IsSet() bool {
	return p.Start != 0 && p.End != 0
}

// ElapsedMs is the free-function form of TimerPair.ElapsedMs.
func ElapsedMs(start, end int64) float64 {
	return TimerPair{Start: start, End: end}.ElapsedMs()
}
