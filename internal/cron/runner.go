package cron

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

const (
	DefaultTimeout = 300 * time.Second
	tailLen        = 500
)

// Execute runs command through sh with a timeout and returns the run
// record. The returned run always describes the attempt; a timeout is a
// failed run with exit code -1 and error "Timeout", not a Go error.
func Execute(ctx context.Context, jobName, command string, timeout time.Duration) Run {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	end := time.Now()

	run := Run{
		JobName:    jobName,
		Command:    command,
		StartedAt:  start,
		FinishedAt: end,
		DurationMs: end.Sub(start).Milliseconds(),
		Output:     tail(stdout.String(), tailLen),
		Error:      tail(stderr.String(), tailLen),
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		run.Status = RunFailed
		run.ExitCode = -1
		run.Error = "Timeout"
	case err == nil:
		run.Status = RunSuccess
	case errors.As(err, &exitErr):
		run.Status = RunFailed
		run.ExitCode = exitErr.ExitCode()
	default:
		run.Status = RunFailed
		run.ExitCode = -1
		if run.Error == "" {
			run.Error = err.Error()
		}
	}
	return run
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
