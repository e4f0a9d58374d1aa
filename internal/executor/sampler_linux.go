//go:build linux

package executor

import (
	"time"

	"github.com/prometheus/procfs"
)

type procSampler struct {
	proc procfs.Proc
}

func newSampler(pid int) sampler {
	p, err := procfs.NewProc(pid)
	if err != nil {
		return noopSampler{}
	}
	return &procSampler{proc: p}
}

// PeakMemory reports VmHWM, the resident set high-water mark.
func (s *procSampler) PeakMemory() (int64, bool) {
	st, err := s.proc.NewStatus()
	if err != nil || st.VmHWM == 0 {
		return 0, false
	}
	return int64(st.VmHWM), true
}

func (s *procSampler) ProcessorTime() (time.Duration, bool) {
	st, err := s.proc.Stat()
	if err != nil {
		return 0, false
	}
	return time.Duration(st.CPUTime() * float64(time.Second)), true
}
