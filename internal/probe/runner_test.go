//go:build unix

package probe

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/domain"
)

type fakeStop struct{ atomic.Bool }

func (f *fakeStop) Stopping() bool { return f.Load() }

func shell(script string) Command {
	return Command{Path: "/bin/sh", Args: []string{"-c", script}}
}

func newRunner(stop StopFlag) *ProcessRunner {
	r := NewProcessRunner(zap.NewNop(), stop)
	r.PollInterval = 10 * time.Millisecond
	return r
}

func TestProcessRunner_ExitZeroIsOK(t *testing.T) {
	res, err := newRunner(nil).Run(shell("exit 0"), 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Outcome.IsOK() {
		t.Fatalf("want ok, got %v", res.Outcome)
	}
	if res.Elapsed <= 0 {
		t.Fatalf("elapsed should be positive, got %v", res.Elapsed)
	}
}

func TestProcessRunner_NonZeroExit(t *testing.T) {
	res, err := newRunner(nil).Run(shell("exit 3"), 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != domain.Failed(3) {
		t.Fatalf("want failed(3), got %v", res.Outcome)
	}
}

func TestProcessRunner_KilledBySignal(t *testing.T) {
	res, err := newRunner(nil).Run(shell("kill -USR1 $$"), 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != domain.KilledBySignal(syscall.SIGUSR1) {
		t.Fatalf("want killed_by_signal(SIGUSR1), got %v", res.Outcome)
	}
}

func TestProcessRunner_SoftTimeoutTerminates(t *testing.T) {
	start := time.Now()
	res, err := newRunner(nil).Run(shell("sleep 10"), 100*time.Millisecond, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != domain.TimedOut() {
		t.Fatalf("want timed_out, got %v", res.Outcome)
	}
	if took := time.Since(start); took > 3*time.Second {
		t.Fatalf("graceful terminate should end the probe quickly, took %v", took)
	}
}

func TestProcessRunner_HardTimeoutKillsAndReaps(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "pid")
	soft, hard := 200*time.Millisecond, 200*time.Millisecond

	start := time.Now()
	res, err := newRunner(nil).Run(shell(`trap "" TERM; echo $$ > `+pidFile+`; while :; do sleep 1; done`), soft, hard)
	took := time.Since(start)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != domain.TimedOut() {
		t.Fatalf("want timed_out, got %v", res.Outcome)
	}
	if took < soft+hard {
		t.Fatalf("killed before the hard timeout expired: %v", took)
	}
	// soft+hard plus scheduling slack
	if took > soft+hard+2*time.Second {
		t.Fatalf("kill came too late: %v", took)
	}

	raw, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}
	// A zombie would still accept signal 0.
	if err := syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
		t.Fatalf("child %d not reaped: kill(0) = %v", pid, err)
	}
}

func TestProcessRunner_StopInterrupts(t *testing.T) {
	stop := &fakeStop{}
	time.AfterFunc(100*time.Millisecond, func() { stop.Store(true) })

	start := time.Now()
	_, err := newRunner(stop).Run(shell("sleep 10"), time.Minute, time.Second)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("want ErrInterrupted, got %v", err)
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("shutdown should not wait for the soft timeout, took %v", took)
	}
}

func TestProcessRunner_StartFailure(t *testing.T) {
	res, err := newRunner(nil).Run(Command{Path: "/nonexistent/turnutils_uclient"}, time.Second, time.Second)
	if err == nil {
		t.Fatalf("want start error")
	}
	if res.Outcome != domain.ExecError() {
		t.Fatalf("want exec_error, got %v", res.Outcome)
	}
}

func TestTailBuffer_KeepsTail(t *testing.T) {
	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	if got := string(b.Bytes()); got != "defg" {
		t.Fatalf("want %q, got %q", "defg", got)
	}
}
