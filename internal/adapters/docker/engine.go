// Package docker implements the container engine port on top of the docker CLI.
package docker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"os/exec"
	"slices"
	"strings"

	"go.trai.ch/ybt/internal/adapters/shell"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultBinary is the docker CLI looked up on PATH.
const DefaultBinary = "docker"

// stderrTail bounds how much stderr an error message carries.
const stderrTail = 2048

var _ ports.ContainerEngine = (*Engine)(nil)

// Engine drives a local or remote docker daemon through its CLI.
type Engine struct {
	bin    string
	logger ports.Logger
}

// NewEngine creates an Engine invoking bin, or DefaultBinary when bin is empty.
func NewEngine(bin string, logger ports.Logger) *Engine {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Engine{bin: bin, logger: logger}
}

// BuildLayer builds one setup step on top of parent and tags the result.
// The Dockerfile is passed on stdin so no build context is sent.
func (e *Engine) BuildLayer(
	ctx context.Context,
	parent string,
	step domain.SetupStep,
	tag string,
	out io.Writer,
) error {
	dockerfile, err := Dockerfile(parent, step)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to render dockerfile"), "image", tag)
	}

	e.logger.Debug("building layer", "image", tag, "step", step.Name)
	err = e.stream(ctx, strings.NewReader(dockerfile), out, func(line string) {
		e.logger.Debug(line, "image", tag)
	}, "build", "--tag", tag, "-")
	if err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, "docker build failed"), "image", tag), "step", step.Name)
	}
	return nil
}

// ImageExists reports whether ref is present in the local image store.
func (e *Engine) ImageExists(ctx context.Context, ref string) (bool, error) {
	out, err := e.output(ctx, "images", "--quiet", ref)
	if err != nil {
		return false, zerr.With(zerr.Wrap(err, "docker images failed"), "image", ref)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// RemoteExists reports whether the registry has a manifest for ref.
// A failing manifest lookup is reported as absent.
func (e *Engine) RemoteExists(ctx context.Context, ref string) (bool, error) {
	_, err := e.output(ctx, "manifest", "inspect", ref)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, zerr.With(zerr.Wrap(err, "docker manifest inspect failed"), "image", ref)
}

// Pull fetches ref from its registry.
func (e *Engine) Pull(ctx context.Context, ref string) error {
	if err := e.stream(ctx, nil, nil, e.debugLine(ref), "pull", ref); err != nil {
		return zerr.With(zerr.Wrap(err, "docker pull failed"), "image", ref)
	}
	return nil
}

// Push uploads ref to its registry.
func (e *Engine) Push(ctx context.Context, ref string) error {
	if err := e.stream(ctx, nil, nil, e.debugLine(ref), "push", ref); err != nil {
		return zerr.With(zerr.Wrap(err, "docker push failed"), "image", ref)
	}
	return nil
}

// Tag adds dst as a name for src. Identical references are a no-op.
func (e *Engine) Tag(ctx context.Context, src, dst string) error {
	if src == dst {
		return nil
	}
	if _, err := e.output(ctx, "tag", src, dst); err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, "docker tag failed"), "image", src), "tag", dst)
	}
	return nil
}

// Run executes spec in a fresh container of image. The working directory is
// bind-mounted at the same path so outputs land in the workspace.
func (e *Engine) Run(ctx context.Context, image string, spec domain.CommandSpec, out io.Writer) error {
	if len(spec.Args) == 0 {
		return nil
	}

	args := runArgs(image, spec)
	err := e.stream(ctx, nil, out, func(line string) {
		e.logger.Info(line, "target", spec.Name)
	}, args...)
	if err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, "command failed"), "target", spec.Name), "image", image)
	}
	return nil
}

func runArgs(image string, spec domain.CommandSpec) []string {
	args := []string{"run", "--rm"}
	if spec.Dir != "" {
		args = append(args, "--volume", spec.Dir+":"+spec.Dir, "--workdir", spec.Dir)
	}
	for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
		args = append(args, "--env", k+"="+spec.Env[k])
	}
	args = append(args, image)
	return append(args, spec.Args...)
}

func (e *Engine) debugLine(ref string) func(string) {
	return func(line string) { e.logger.Debug(line, "image", ref) }
}

// output runs a short docker command and returns its stdout.
func (e *Engine) output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.bin, args...) //nolint:gosec // arguments are built by this package
	var stderr tailBuffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, commandError(err, &stderr)
	}
	return out, nil
}

// stream runs a long docker command, logging every output line through emit
// and copying the output to out.
func (e *Engine) stream(ctx context.Context, stdin io.Reader, out io.Writer, emit func(string), args ...string) error {
	cmd := exec.CommandContext(ctx, e.bin, args...) //nolint:gosec // arguments are built by this package
	cmd.Stdin = stdin

	stdoutLog := shell.NewLineWriter(emit)
	stderrLog := shell.NewLineWriter(emit)
	shared := shell.NewSyncWriter(out)
	var stderr tailBuffer
	cmd.Stdout = io.MultiWriter(stdoutLog, shared)
	cmd.Stderr = io.MultiWriter(stderrLog, shared, &stderr)

	err := cmd.Run()
	_ = stdoutLog.Close()
	_ = stderrLog.Close()
	if err != nil {
		return commandError(err, &stderr)
	}
	return nil
}

func commandError(err error, stderr *tailBuffer) error {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	err = zerr.With(err, "exit_code", exitCode)
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		err = zerr.With(err, "stderr", msg)
	}
	return err
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - stderrTail; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
