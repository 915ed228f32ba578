package cron

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Crontab reads and replaces the user's crontab as a whole.
type Crontab interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, content string) error
}

// SystemCrontab shells out to crontab(1).
type SystemCrontab struct{}

func (SystemCrontab) Read(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "crontab", "-l")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// crontab -l fails when the user has no crontab yet.
		if strings.Contains(stderr.String(), "no crontab") {
			return "", nil
		}
		return "", fmt.Errorf("crontab -l: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (SystemCrontab) Write(ctx context.Context, content string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "crontab", "-")
	cmd.Stdin = strings.NewReader(content)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("crontab -: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func crontabLine(job Job) string {
	return job.Schedule + " " + job.Command
}

// InstallJob appends the job's line to the crontab unless it is already
// present. It reports whether the crontab changed.
func InstallJob(ctx context.Context, ct Crontab, job Job) (bool, error) {
	current, err := ct.Read(ctx)
	if err != nil {
		return false, err
	}
	line := crontabLine(job)
	for _, l := range strings.Split(current, "\n") {
		if strings.TrimSpace(l) == line {
			return false, nil
		}
	}
	if current != "" && !strings.HasSuffix(current, "\n") {
		current += "\n"
	}
	return true, ct.Write(ctx, current+line+"\n")
}

// UninstallJob removes every line equal to the job's line.
func UninstallJob(ctx context.Context, ct Crontab, job Job) (bool, error) {
	current, err := ct.Read(ctx)
	if err != nil {
		return false, err
	}
	line := crontabLine(job)
	var kept []string
	removed := false
	for _, l := range strings.Split(strings.TrimRight(current, "\n"), "\n") {
		if strings.TrimSpace(l) == line {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	if !removed {
		return false, nil
	}
	content := strings.Join(kept, "\n")
	if content != "" {
		content += "\n"
	}
	return true, ct.Write(ctx, content)
}

// ReplaceJob swaps the installed line of old for the line of updated. Nothing
// happens when old is not installed; a disabled updated job is only removed.
// It reports whether the crontab changed.
func ReplaceJob(ctx context.Context, ct Crontab, old, updated Job) (bool, error) {
	if crontabLine(old) == crontabLine(updated) && updated.Enabled {
		return false, nil
	}
	removed, err := UninstallJob(ctx, ct, old)
	if err != nil || !removed {
		return false, err
	}
	if !updated.Enabled {
		return true, nil
	}
	if _, err := InstallJob(ctx, ct, updated); err != nil {
		return true, err
	}
	return true, nil
}
