// Package shell provides the local process executor adapter.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

// ErrEnvironmentUnsupported is returned when a command must run inside a
// container environment, which the local executor cannot enter.
var ErrEnvironmentUnsupported = zerr.New("local executor cannot run inside an environment")

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger: logger,
	}
}

// Execute runs spec on the host and waits for it to complete.
// The environment is the allow-listed host variables overridden by spec.Env.
// Output is streamed line by line to the logger and copied to out.
func (e *Executor) Execute(
	ctx context.Context,
	env *domain.ResolvedEnvironment,
	spec domain.CommandSpec,
	out io.Writer,
) error {
	if env != nil {
		return zerr.With(zerr.Wrap(ErrEnvironmentUnsupported, spec.Name), "env", env.Name)
	}
	if len(spec.Args) == 0 {
		return nil
	}

	name := spec.Args[0]
	args := spec.Args[1:]

	cmdEnv := resolveEnvironment(os.Environ(), spec.Env)

	executable := name
	if !filepath.IsAbs(name) {
		if lp, err := lookPath(name, cmdEnv); err == nil {
			executable = lp
		}
	}

	cmd := exec.CommandContext(ctx, executable, args...) //nolint:gosec // user provided command

	// exec.CommandContext sets Args[0] to the resolved path; keep the name as invoked.
	if len(cmd.Args) > 0 {
		cmd.Args[0] = name
	}
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	cmd.Env = cmdEnv

	stdoutLog := NewLineWriter(func(line string) { e.logger.Info(line, "target", spec.Name) })
	stderrLog := NewLineWriter(func(line string) { e.logger.Warn(line, "target", spec.Name) })
	shared := NewSyncWriter(out)
	cmd.Stdout = io.MultiWriter(stdoutLog, shared)
	cmd.Stderr = io.MultiWriter(stderrLog, shared)

	err := cmd.Run()
	_ = stdoutLog.Close()
	_ = stderrLog.Close()

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode), "target", spec.Name)
	}

	return nil
}

// SyncWriter serializes writes from concurrent stdout and stderr copies.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w. A nil w discards.
func NewSyncWriter(w io.Writer) *SyncWriter {
	if w == nil {
		w = io.Discard
	}
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// LineWriter buffers partial writes and emits one call per line.
// Trailing carriage returns are trimmed.
type LineWriter struct {
	emit func(line string)
	buf  []byte
}

// NewLineWriter returns a LineWriter that passes every complete line to emit.
func NewLineWriter(emit func(line string)) *LineWriter {
	return &LineWriter{emit: emit}
}

func (w *LineWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(strings.TrimSuffix(string(w.buf[:i]), "\r"))
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

// Close flushes a trailing line without a newline.
func (w *LineWriter) Close() error {
	if len(w.buf) > 0 {
		w.emit(strings.TrimSuffix(string(w.buf), "\r"))
		w.buf = nil
	}
	return nil
}

// allowListedEnvVars are the host variables a command inherits.
var allowListedEnvVars = map[string]struct{}{
	"HOME":   {},
	"TERM":   {},
	"USER":   {},
	"PATH":   {},
	"TMPDIR": {},
}

// resolveEnvironment merges the allow-listed host environment with the
// command's own variables, which take precedence.
func resolveEnvironment(sysEnv []string, specEnv map[string]string) []string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}

	for k, v := range specEnv {
		envMap[k] = v
	}

	result := make([]string, 0, len(envMap))
	for k, v := range envMap {
		result = append(result, k+"="+v)
	}
	return result
}

// lookPath searches for an executable in the directories named by the PATH of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if p, ok := strings.CutPrefix(e, "PATH="); ok {
			path = p
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
