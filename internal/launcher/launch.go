package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoScript      = errors.New("launcher: no launcher script configured")
	ErrScriptMissing = errors.New("launcher: launcher script not found")
)

// LaunchSpec describes one detached launcher invocation.
type LaunchSpec struct {
	Name   string
	Script string
	LogDir string
	Env    []string
}

// Handle tracks one launched unit process.
type Handle struct {
	PID        int
	StdoutPath string
	StderrPath string

	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exited   bool
	exitCode int32
}

// Launch starts the unit's launcher script in its own session so the child
// survives independent of the supervisor's terminal. Script output is
// captured to per-unit log files when LogDir is set.
func Launch(spec LaunchSpec) (*Handle, error) {
	script := strings.TrimSpace(spec.Script)
	if script == "" {
		return nil, ErrNoScript
	}
	info, err := os.Stat(script)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScriptMissing, script)
	}
	if info.Mode()&0o111 == 0 {
		if err := os.Chmod(script, 0o755); err != nil {
			return nil, fmt.Errorf("launcher: make %s executable: %w", script, err)
		}
	}

	cmd := exec.Command("bash", script)
	cmd.Dir = filepath.Dir(script)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	h := &Handle{cmd: cmd, done: make(chan struct{})}

	var outFile, errFile *os.File
	if spec.LogDir != "" {
		name := spec.Name
		if name == "" {
			name = filepath.Base(script)
		}
		h.StdoutPath = filepath.Join(spec.LogDir, name+"_stdout.log")
		h.StderrPath = filepath.Join(spec.LogDir, name+"_stderr.log")
		outFile, err = os.Create(h.StdoutPath)
		if err != nil {
			return nil, fmt.Errorf("launcher: open stdout log: %w", err)
		}
		errFile, err = os.Create(h.StderrPath)
		if err != nil {
			outFile.Close()
			return nil, fmt.Errorf("launcher: open stderr log: %w", err)
		}
		cmd.Stdout = outFile
		cmd.Stderr = errFile
	}

	if err := cmd.Start(); err != nil {
		if outFile != nil {
			outFile.Close()
		}
		if errFile != nil {
			errFile.Close()
		}
		return nil, fmt.Errorf("launcher: start %s: %w", script, err)
	}
	// Child holds its own descriptors after Start.
	if outFile != nil {
		outFile.Close()
	}
	if errFile != nil {
		errFile.Close()
	}

	h.PID = cmd.Process.Pid
	log.Info().Str("unit", spec.Name).Str("script", script).Int("pid", h.PID).Msg("launched")
	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exited = true
	h.exitCode = exitCodeFromError(err, h.cmd)
	h.mu.Unlock()
	close(h.done)
}

// Running reports whether the launched process is still alive.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the exit code once the process has exited.
func (h *Handle) ExitCode() (int32, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.exited
}

// Done is closed when the launched process exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop terminates the process group, escalating to SIGKILL after the grace
// period.
func (h *Handle) Stop(grace time.Duration) error {
	if !h.Running() {
		return nil
	}
	// Negative pid targets the session created at launch.
	if err := syscall.Kill(-h.PID, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("launcher: terminate pid %d: %w", h.PID, err)
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}
	log.Warn().Int("pid", h.PID).Msg("graceful stop timed out, killing")
	if err := syscall.Kill(-h.PID, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("launcher: kill pid %d: %w", h.PID, err)
	}
	<-h.done
	return nil
}

func exitCodeFromError(err error, cmd *exec.Cmd) int32 {
	if err == nil {
		if cmd.ProcessState != nil {
			return int32(cmd.ProcessState.ExitCode())
		}
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}

// TailFile returns up to limit bytes from the end of a capture log, for
// error reporting when a unit exits before becoming ready.
func TailFile(path string, limit int) string {
	if path == "" || limit <= 0 {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > limit {
		data = data[len(data)-limit:]
	}
	return strings.TrimSpace(string(data))
}
