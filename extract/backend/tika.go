package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"textract/extract"
	"textract/logging"
)

const (
	// killGrace bounds how long a cancelled command may keep its pipes open.
	killGrace = 2 * time.Second
	// stderrTail is how much of the command's stderr an error keeps.
	stderrTail = 2048
)

// Tika runs an external text converter, Apache Tika by default. The input
// path is appended to Command and stdout is written to the destination.
type Tika struct {
	Command []string
	Timeout time.Duration
	Logger  *logging.Logger
}

// NewTika returns a Tika engine for command.
func NewTika(command []string, timeout time.Duration, logger *logging.Logger) *Tika {
	return &Tika{Command: command, Timeout: timeout, Logger: logger}
}

// Name implements extract.RichEngine.
func (t *Tika) Name() string {
	if len(t.Command) > 0 {
		return t.Command[0]
	}
	return "tika"
}

// ToText implements extract.RichEngine.
func (t *Tika) ToText(ctx context.Context, src, dst string) extract.Result {
	if len(t.Command) == 0 {
		return extract.Result{Kind: extract.ResultUnavailable, Err: errors.New("no rich engine command configured")}
	}
	bin, err := exec.LookPath(t.Command[0])
	if err != nil {
		return extract.Result{Kind: extract.ResultUnavailable, Err: err}
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return extract.Result{Kind: extract.ResultFailed, Err: fmt.Errorf("create output: %w", err)}
	}

	args := append(append([]string(nil), t.Command[1:]...), src)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGrace

	logger := t.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger.Debug(ctx, "running rich engine", zap.String("cmd", extract.ShellJoin(append([]string{t.Command[0]}, args...))))

	runErr := cmd.Run()
	closeErr := out.Close()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return extract.Result{Kind: extract.ResultTimedOut, Err: fmt.Errorf("%s: %w", t.Name(), context.DeadlineExceeded)}
	case runErr != nil:
		return extract.Result{Kind: extract.ResultFailed, Err: commandError(runErr, stderr.Bytes())}
	case closeErr != nil:
		return extract.Result{Kind: extract.ResultFailed, Err: fmt.Errorf("close output: %w", closeErr)}
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return extract.Result{Kind: extract.ResultFailed, Err: fmt.Errorf("read output: %w", err)}
	}
	return extract.Result{Kind: extract.ResultOK, Text: string(data)}
}

func commandError(err error, stderr []byte) error {
	if len(stderr) > stderrTail {
		stderr = stderr[len(stderr)-stderrTail:]
	}
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}
