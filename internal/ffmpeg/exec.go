package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const stderrTail = 2048

// Runner executes an external command and returns its stdout.
// Tests swap it out to capture arguments without spawning processes.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// runs the command, folding the tail of stderr into the error
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", name, ctxErr)
		}
		msg := tail(stderr.String(), stderrTail)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return nil, fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// runs ffmpeg with an argument list built by ffmpeg-go
func Run(ctx context.Context, runner Runner, args []string) error {
	if runner == nil {
		runner = ExecRunner
	}
	bin, err := FFmpegPath()
	if err != nil {
		return err
	}
	_, err = runner(ctx, bin, args...)
	return err
}

// runs ffprobe and returns its stdout
func Probe(ctx context.Context, runner Runner, args []string) ([]byte, error) {
	if runner == nil {
		runner = ExecRunner
	}
	bin, err := FFprobePath()
	if err != nil {
		return nil, err
	}
	return runner(ctx, bin, args...)
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
