//go:build !linux

package executor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"
)

var errHardLimitsUnsupported = errors.New("hard limits are not supported on this platform")

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

func killProcess(cmd *exec.Cmd) {
	_ = cmd.Process.Kill()
}

// awaitExit reaps the child; without waitid there is no way to wait while
// keeping the pid reserved.
func awaitExit(cmd *exec.Cmd) (bool, error) {
	return true, cmd.Wait()
}

func applyHardLimits(int, int64, time.Duration) error {
	return errHardLimitsUnsupported
}

func finalUsage(ps *os.ProcessState) (time.Duration, int64) {
	return ps.UserTime() + ps.SystemTime(), 0
}
