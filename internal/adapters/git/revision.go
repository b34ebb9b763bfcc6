// Package git reports the checked-out revision of a workspace.
package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

// CommitEnv overrides the revision, as CI systems usually export it.
const CommitEnv = "GIT_COMMIT"

var _ ports.RevisionProvider = (*Provider)(nil)

// Provider resolves HEAD with the git CLI. Results are memoized per root.
type Provider struct {
	bin string

	mu   sync.Mutex
	memo map[string]string
}

// NewProvider creates a Provider invoking the git binary on PATH.
func NewProvider() *Provider {
	return &Provider{bin: "git", memo: make(map[string]string)}
}

// Revision returns the HEAD commit of the repository containing root.
// A root outside any repository yields "".
func (p *Provider) Revision(ctx context.Context, root string) (string, error) {
	if rev := os.Getenv(CommitEnv); rev != "" {
		return rev, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if rev, ok := p.memo[root]; ok {
		return rev, nil
	}

	repo, ok := findRepository(root)
	if !ok {
		p.memo[root] = ""
		return "", nil
	}

	cmd := exec.CommandContext(ctx, p.bin, "rev-parse", "HEAD")
	cmd.Dir = repo
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		err = zerr.With(zerr.Wrap(err, "failed to resolve revision"), "repository", repo)
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			err = zerr.With(err, "stderr", string(msg))
		}
		return "", err
	}

	rev := string(bytes.TrimSpace(out))
	p.memo[root] = rev
	return rev, nil
}

// findRepository walks up from dir to the first directory holding .git.
func findRepository(dir string) (string, bool) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		_, err := os.Stat(filepath.Join(dir, ".git"))
		if err == nil {
			return dir, true
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
