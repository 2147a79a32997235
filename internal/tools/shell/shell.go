// Package shell provides the "run_terminal_command" tool: it executes a
// command line through the OS shell with a hard wall-clock timeout and a
// denylist of known-destructive command patterns.
//
// The denylist is advisory defence-in-depth, not a security boundary — a
// pattern check over a command string is inherently bypassable through
// aliasing or encoding tricks. It exists to stop the model from running the
// obvious catastrophic commands by accident.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/MrWong99/quill/internal/tools"
	"github.com/MrWong99/quill/pkg/provider/llm"
)

const (
	// DefaultTimeout is the wall-clock limit applied when no explicit timeout
	// is configured. The subprocess and its children are terminated when it
	// elapses.
	DefaultTimeout = 30 * time.Second

	// maxCapturedBytes caps how much of each output stream is returned to the
	// model. Anything beyond it is dropped with a truncation note.
	maxCapturedBytes = 64 << 10 // 64 KiB

	// waitDelay bounds how long Wait blocks on pipe drainage after the
	// process group has been killed, so a child holding the pipes open cannot
	// hang the agent loop.
	waitDelay = 2 * time.Second
)

// runArgs is the JSON-decoded input for the "run_terminal_command" tool.
type runArgs struct {
	// Command is the command line passed to the OS shell.
	Command string `json:"command"`
}

// runResult is the JSON-encoded output of the "run_terminal_command" tool.
// A non-zero exit code is a normal result, not a handler failure.
type runResult struct {
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"duration_ms"`
}

// denyPatterns are compiled regular expressions that match destructive shell
// commands. Each pattern targets a specific class of damage; matching is on
// the raw command string before any execution happens.
var denyPatterns = []*regexp.Regexp{
	// Recursive force-delete of root-like paths.
	regexp.MustCompile(`\brm\s+(-[^\s]*\s+)*-[rRf]*[rR][rRf]*\s+/(\s|$)`),
	regexp.MustCompile(`\brm\s+-[rRf]+\s+/\S*\s*$`),
	regexp.MustCompile(`\brm\s+-[rRf]+\s+\*`),

	// dd with an input source can overwrite anything.
	regexp.MustCompile(`\bdd\s+if=`),

	// Fork bombs.
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;`),
	regexp.MustCompile(`\.\(\)\s*\{\s*\.\|\.\s*&\s*\}\s*;`),

	// System power control.
	regexp.MustCompile(`\b(shutdown|reboot|poweroff|halt|init\s+[06])\b`),

	// Filesystem creation / wiping.
	regexp.MustCompile(`\bmkfs(\.\w+)?\b`),
	regexp.MustCompile(`\bwipefs\b.*-a\b`),
	regexp.MustCompile(`\bsgdisk\b.*--zap-all\b`),

	// Writing directly to block devices.
	regexp.MustCompile(`>\s*/dev/(sd|nvme|vd|hd|mmcblk)`),

	// Recursive permission changes on root.
	regexp.MustCompile(`\bchmod\s+-R\s+\S+\s+/\s*$`),
	regexp.MustCompile(`\bchown\s+-R\s+\S+\s+/\s*$`),
}

// ErrDenied is wrapped by handler errors caused by the denylist. The command
// was rejected before any process was spawned.
var ErrDenied = errors.New("command blocked by safety filter")

// ErrTimeout is wrapped by handler errors caused by the wall-clock limit.
var ErrTimeout = errors.New("command timed out")

// Denied reports whether command matches the denylist, returning the pattern
// that matched.
func Denied(command string) (bool, string) {
	for _, pat := range denyPatterns {
		if pat.MatchString(command) {
			return true, pat.String()
		}
	}
	return false, ""
}

// makeRunHandler returns the handler for "run_terminal_command" bound to the
// given working directory and timeout.
func makeRunHandler(workDir string, timeout time.Duration) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a runArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("shell: run_terminal_command: failed to parse arguments: %w", err)
		}
		if a.Command == "" {
			return "", fmt.Errorf("shell: run_terminal_command: command must not be empty")
		}

		if denied, pattern := Denied(a.Command); denied {
			return "", fmt.Errorf("shell: run_terminal_command: %w (matched %q)", ErrDenied, pattern)
		}

		execCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		shellPath, shellFlag := systemShell()
		cmd := exec.CommandContext(execCtx, shellPath, shellFlag, a.Command)
		cmd.Dir = workDir
		cmd.WaitDelay = waitDelay
		setProcessGroup(cmd)
		cmd.Cancel = func() error { return terminate(cmd) }

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		start := time.Now()
		err := cmd.Run()
		elapsed := time.Since(start)

		if execCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("shell: run_terminal_command: %w after %s", ErrTimeout, timeout)
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("shell: run_terminal_command: %w", ctx.Err())
		}

		exitCode := 0
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				return "", fmt.Errorf("shell: run_terminal_command: %w", err)
			}
		}

		res, err := json.Marshal(runResult{
			ExitCode:   exitCode,
			Stdout:     truncate(stdout.String()),
			Stderr:     truncate(stderr.String()),
			DurationMs: elapsed.Milliseconds(),
		})
		if err != nil {
			return "", fmt.Errorf("shell: run_terminal_command: failed to encode result: %w", err)
		}
		return string(res), nil
	}
}

// truncate caps s at maxCapturedBytes, appending a note when output was dropped.
func truncate(s string) string {
	if len(s) <= maxCapturedBytes {
		return s
	}
	return s[:maxCapturedBytes] + fmt.Sprintf("\n[output truncated at %d bytes, total was %d bytes]", maxCapturedBytes, len(s))
}

// NewTools constructs the shell tool set. Commands run with workDir as their
// working directory; timeout ≤ 0 means [DefaultTimeout].
func NewTools(workDir string, timeout time.Duration) []tools.Tool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return []tools.Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        "run_terminal_command",
				Description: fmt.Sprintf("Execute a command line through the OS shell and return its exit code, stdout, and stderr. A non-zero exit code is a normal result. Obviously destructive commands (rm -rf /, dd, fork bombs, mkfs, shutdown) are blocked by a safety filter. Commands are killed after %s.", timeout),
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"command": map[string]any{
							"type":        "string",
							"description": "The shell command to execute.",
						},
					},
					"required": []string{"command"},
				},
			},
			Handler: makeRunHandler(workDir, timeout),
		},
	}
}
