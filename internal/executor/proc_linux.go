//go:build linux

package executor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// The child gets its own process group so a kill reaches anything it forked.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) {
	pid := cmd.Process.Pid
	_ = unix.Kill(-pid, unix.SIGKILL)
	_ = cmd.Process.Kill()
}

// awaitExit blocks until the child is waitable without reaping it, so the
// pid stays reserved while samplers may still be reading /proc/<pid>.
func awaitExit(cmd *exec.Cmd) (bool, error) {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, cmd.Process.Pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to wait for pid %d: %w", cmd.Process.Pid, err)
		}
		return false, nil
	}
}

// applyHardLimits caps address space and processor seconds. Both ceilings
// sit above the enforced limits so that sampling still sees a program cross
// them and the supervisor kill stays the primary timeout signal.
func applyHardLimits(pid int, memoryBytes int64, deadline time.Duration) error {
	if memoryBytes > 0 {
		ceiling := uint64(HardMemoryCeiling(memoryBytes))
		lim := &unix.Rlimit{Cur: ceiling, Max: ceiling}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, lim, nil); err != nil {
			return fmt.Errorf("failed to set address space limit: %w", err)
		}
	}
	secs := uint64(math.Ceil(deadline.Seconds())) + 1
	lim := &unix.Rlimit{Cur: secs, Max: secs}
	if err := unix.Prlimit(pid, unix.RLIMIT_CPU, lim, nil); err != nil {
		return fmt.Errorf("failed to set processor time limit: %w", err)
	}
	return nil
}

// finalUsage reads processor time and peak resident memory from rusage.
func finalUsage(ps *os.ProcessState) (time.Duration, int64) {
	cpu := ps.UserTime() + ps.SystemTime()
	ru, ok := ps.SysUsage().(*syscall.Rusage)
	if !ok || ru == nil {
		return cpu, 0
	}
	// Maxrss is in kilobytes on linux
	return cpu, ru.Maxrss * 1024
}
