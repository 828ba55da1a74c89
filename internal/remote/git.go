package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gogithttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitClient reads and writes one file of a plain git repository. Every call
// works on a fresh single-branch clone in a temporary directory.
type GitClient struct {
	url    string
	branch string
	token  string
	author string
}

// NewGitClient creates a git transport. token may be empty for anonymous access.
func NewGitClient(url, branch, token string) *GitClient {
	return &GitClient{url: url, branch: branch, token: token, author: "cmms"}
}

// Fetch returns the bytes of path at the tip of the branch.
func (c *GitClient) Fetch(ctx context.Context, path string) ([]byte, error) {
	dir, _, err := c.clone(ctx, 1)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(path)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from clone: %w", path, err)
	}
	return data, nil
}

// Update replaces an existing file and pushes the commit. It returns ErrNotFound
// when the path does not exist on the branch.
func (c *GitClient) Update(ctx context.Context, path string, data []byte, message string) error {
	return c.commit(ctx, path, data, message, true)
}

// Create adds path and pushes the commit.
func (c *GitClient) Create(ctx context.Context, path string, data []byte, message string) error {
	return c.commit(ctx, path, data, message, false)
}

func (c *GitClient) commit(ctx context.Context, path string, data []byte, message string, mustExist bool) error {
	// Full history; pushing from a shallow clone is not reliable.
	dir, repo, err := c.clone(ctx, 0)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	full := filepath.Join(dir, filepath.FromSlash(path))
	if mustExist {
		if _, err := os.Stat(full); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(filepath.ToSlash(path)); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	_, err = w.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: c.author, Email: c.author + "@localhost", When: time.Now()},
	})
	if errors.Is(err, gogit.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}

	ref := plumbing.NewBranchReferenceName(c.branch)
	err = repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(ref + ":" + ref)},
		Auth:       c.auth(),
	})
	if err == gogit.NoErrAlreadyUpToDate {
		return nil
	}
	if err != nil {
		return fmt.Errorf("git push failed for %s: %w", c.url, err)
	}
	return nil
}

func (c *GitClient) clone(ctx context.Context, depth int) (string, *gogit.Repository, error) {
	dir, err := os.MkdirTemp("", "cmms-git-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	log.Printf("Cloning %s (branch: %s)", c.url, c.branch)
	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:           c.url,
		ReferenceName: plumbing.NewBranchReferenceName(c.branch),
		SingleBranch:  true,
		Depth:         depth,
		Auth:          c.auth(),
	})
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("git clone failed for %s: %w", c.url, err)
	}
	return dir, repo, nil
}

func (c *GitClient) auth() transport.AuthMethod {
	if c.token == "" {
		return nil
	}
	// Username is ignored for token auth.
	return &gogithttp.BasicAuth{Username: "git", Password: c.token}
}
