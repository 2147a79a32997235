//go:build unix

package shell

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, workDir string, timeout time.Duration, command string) (runResult, error) {
	t.Helper()
	handler := makeRunHandler(workDir, timeout)
	args, _ := json.Marshal(runArgs{Command: command})
	out, err := handler(context.Background(), string(args))
	if err != nil {
		return runResult{}, err
	}
	var res runResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("run_terminal_command returned invalid JSON %q: %v", out, err)
	}
	return res, nil
}

func TestRun_Echo(t *testing.T) {
	t.Parallel()
	res, err := run(t, t.TempDir(), DefaultTimeout, "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if res.Stderr != "" {
		t.Errorf("stderr = %q, want empty", res.Stderr)
	}
}

func TestRun_NonZeroExitIsNormalResult(t *testing.T) {
	t.Parallel()
	res, err := run(t, t.TempDir(), DefaultTimeout, "exit 3")
	if err != nil {
		t.Fatalf("non-zero exit should not be a handler error, got: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
}

func TestRun_Stderr(t *testing.T) {
	t.Parallel()
	res, err := run(t, t.TempDir(), DefaultTimeout, "echo oops >&2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Stderr != "oops\n" {
		t.Errorf("stderr = %q, want %q", res.Stderr, "oops\n")
	}
	if res.Stdout != "" {
		t.Errorf("stdout = %q, want empty", res.Stdout)
	}
}

func TestRun_WorkingDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := run(t, dir, DefaultTimeout, "pwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.TrimSpace(res.Stdout)
	// The temp dir may be reached through a symlink (e.g. /tmp on macOS).
	want, _ := filepath.EvalSymlinks(dir)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// The probe file is only written if the child survives the kill.
	probe := filepath.Join(dir, "probe")
	_, err := run(t, dir, 200*time.Millisecond, "sleep 2 && touch "+probe)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error %v should wrap ErrTimeout", err)
	}

	time.Sleep(3 * time.Second)
	if _, statErr := os.Stat(probe); !os.IsNotExist(statErr) {
		t.Error("child process survived the timeout kill")
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	t.Parallel()
	if _, err := run(t, t.TempDir(), DefaultTimeout, ""); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestRun_BadArguments(t *testing.T) {
	t.Parallel()
	handler := makeRunHandler(t.TempDir(), DefaultTimeout)
	if _, err := handler(context.Background(), "{not json"); err == nil {
		t.Error("expected error for malformed arguments")
	}
}

func TestRun_DeniedCommandDoesNotSpawn(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	// Chain a file write after the blocked command: if the filter failed and
	// the shell ran, the probe file would exist.
	probe := filepath.Join(dir, "probe")
	_, err := run(t, dir, DefaultTimeout, "shutdown -h now; touch "+probe)
	if err == nil {
		t.Fatal("expected denylist error")
	}
	if !errors.Is(err, ErrDenied) {
		t.Errorf("error %v should wrap ErrDenied", err)
	}
	if _, statErr := os.Stat(probe); !os.IsNotExist(statErr) {
		t.Error("denied command was executed anyway")
	}
}

func TestDenied(t *testing.T) {
	t.Parallel()

	blocked := []string{
		"rm -rf /",
		"rm -rf /*",
		"sudo rm -rf / --no-preserve-root",
		"dd if=/dev/zero of=/dev/sda",
		":(){ :|: & };:",
		"shutdown -h now",
		"reboot",
		"poweroff",
		"init 0",
		"mkfs.ext4 /dev/sda1",
		"wipefs -a /dev/sda",
		"sgdisk --zap-all /dev/sda",
		"cat garbage > /dev/sda",
		"chmod -R 777 /",
		"chown -R nobody /",
	}
	for _, cmd := range blocked {
		t.Run(cmd, func(t *testing.T) {
			if denied, _ := Denied(cmd); !denied {
				t.Errorf("Denied(%q) = false, want true", cmd)
			}
		})
	}

	allowed := []string{
		"echo hello",
		"ls -la",
		"rm -rf ./build",
		"rm file.txt",
		"go test ./...",
		"git init",
		"dd-tool --help",
		"chmod -R 755 ./scripts",
	}
	for _, cmd := range allowed {
		t.Run(cmd, func(t *testing.T) {
			if denied, pat := Denied(cmd); denied {
				t.Errorf("Denied(%q) = true (matched %q), want false", cmd, pat)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	short := "short output"
	if got := truncate(short); got != short {
		t.Errorf("truncate(%q) = %q, want unchanged", short, got)
	}

	long := strings.Repeat("x", maxCapturedBytes+100)
	got := truncate(long)
	if !strings.HasPrefix(got, long[:maxCapturedBytes]) {
		t.Error("truncated output should keep the leading bytes")
	}
	if !strings.Contains(got, "output truncated") {
		t.Error("truncated output should carry a truncation note")
	}
}

func TestNewTools_Definition(t *testing.T) {
	t.Parallel()
	ts := NewTools(t.TempDir(), 0)
	if len(ts) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(ts))
	}
	def := ts[0].Definition
	if def.Name != "run_terminal_command" {
		t.Errorf("name = %q, want run_terminal_command", def.Name)
	}
	if !strings.Contains(def.Description, DefaultTimeout.String()) {
		t.Errorf("description %q should mention the default timeout", def.Description)
	}
}
