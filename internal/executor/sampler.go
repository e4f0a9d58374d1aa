package executor

import "time"

// sampler reads live usage of a running process. A false second value means
// the reading is unavailable, typically because the process already exited.
type sampler interface {
	PeakMemory() (int64, bool)
	ProcessorTime() (time.Duration, bool)
}

type noopSampler struct{}

func (noopSampler) PeakMemory() (int64, bool)            { return 0, false }
func (noopSampler) ProcessorTime() (time.Duration, bool) { return 0, false }
