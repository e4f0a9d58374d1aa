//go:build !linux

package executor

func newSampler(int) sampler {
	return noopSampler{}
}
