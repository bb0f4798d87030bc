package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelsos/chainbot/internal/logger"
)

// waitDelay bounds how long Run waits for output pipes once the process is killed
const waitDelay = 100 * time.Millisecond

// Runner invokes the chain client binary and returns its stdout split in lines
type Runner interface {
	Run(ctx context.Context, args ...string) ([]string, error)
}

// ExitError is returned when the binary ran but did not succeed
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("chain client exited with code %d", e.Code)
	}
	return fmt.Sprintf("chain client exited with code %d: %s", e.Code, e.Stderr)
}

// ClientProcess runs the chain client binary once per call
type ClientProcess struct {
	BinPath string
	Timeout time.Duration
}

// NewClientProcess resolves the binary path and returns a runner for it
func NewClientProcess(binPath string, timeout time.Duration) (*ClientProcess, error) {
	if binPath == "" {
		return nil, fmt.Errorf("chain client path cannot be empty")
	}

	// bare names are looked up in PATH by exec
	if strings.ContainsRune(binPath, filepath.Separator) && !filepath.IsAbs(binPath) {
		absPath, err := filepath.Abs(binPath)
		if err != nil {
			return nil, fmt.Errorf("invalid binary path: %v", err)
		}
		binPath = absPath
	}

	return &ClientProcess{
		BinPath: filepath.Clean(binPath),
		Timeout: timeout,
	}, nil
}

// Run executes the binary with args and waits for it to exit or for the
// configured timeout to elapse, whichever comes first.
func (p *ClientProcess) Run(ctx context.Context, args ...string) ([]string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	op := "without arguments"
	if len(args) > 0 {
		op = args[0]
	}

	start := time.Now()
	logger.Debug("Running chain client %s %s", p.BinPath, op)

	// #nosec G204 - arguments are passed without a shell
	cmd := exec.CommandContext(ctx, p.BinPath, args...)
	killProcessGroup(cmd)
	// grandchildren may keep the output pipes open after the kill
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("chain client did not finish after %v: %w", elapsed, ctxErr)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}

		return nil, fmt.Errorf("failed to run chain client: %w", err)
	}

	logger.Debug("Chain client %s completed in %v", op, elapsed)
	return SplitLines(stdout.String()), nil
}

// SplitLines splits output on newlines, dropping a trailing empty line
func SplitLines(output string) []string {
	output = strings.TrimRight(output, "\r\n")
	if output == "" {
		return nil
	}

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
