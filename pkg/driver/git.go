package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitFetcher clones git-hosted parent documents into a cache directory.
// Checkouts are keyed by repository and resolved commit, so repeated
// resolutions of a pinned rev skip the network.
type GitFetcher struct {
	CacheDir string
}

// NewGitFetcher returns a fetcher caching under <home>/git.
func NewGitFetcher(home string) *GitFetcher {
	return &GitFetcher{CacheDir: filepath.Join(home, "git")}
}

// Fetch implements Fetcher.
func (f *GitFetcher) Fetch(ctx context.Context, spec *ExtendsSpec) (string, error) {
	if spec == nil || spec.Git == "" {
		return "", fmt.Errorf("git fetch: missing repository")
	}
	baseDir := filepath.Join(f.CacheDir, sanitizePathSegment(spec.Git))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", err
	}

	revision, err := gitRevisionFromSpec(spec)
	if err != nil {
		return "", err
	}

	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		existing := filepath.Join(baseDir, sanitizePathSegment(rev))
		if _, err := os.Stat(existing); err == nil {
			return existing, nil
		}
	}

	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", err
	}

	repo, err := git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{
		URL: spec.Git,
	})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("git clone %s: %w", spec.Git, err)
	}

	hash, err := repo.ResolveRevision(revision)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}

	name := hash.String()
	if spec.Rev != "" {
		name = spec.Rev
	}
	targetDir := filepath.Join(baseDir, sanitizePathSegment(name))
	if _, err := os.Stat(targetDir); err == nil {
		_ = os.RemoveAll(tmpDir)
		return targetDir, nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{
		Hash:  *hash,
		Force: true,
	}); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("git checkout %s: %w", revision, err)
	}

	if err := os.Rename(tmpDir, targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	return targetDir, nil
}

func gitRevisionFromSpec(spec *ExtendsSpec) (plumbing.Revision, error) {
	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		return plumbing.Revision(rev), nil
	}
	if tag := strings.TrimSpace(spec.Tag); tag != "" {
		return plumbing.Revision("refs/tags/" + tag), nil
	}
	if branch := strings.TrimSpace(spec.Branch); branch != "" {
		return plumbing.Revision("refs/heads/" + branch), nil
	}
	return "", fmt.Errorf("git extends require rev, tag, or branch")
}

func gitDescriptor(spec *ExtendsSpec) string {
	switch {
	case spec.Rev != "":
		return spec.Rev
	case spec.Tag != "":
		return "tag:" + spec.Tag
	default:
		return "branch:" + spec.Branch
	}
}

func sanitizePathSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "head"
	}
	var b strings.Builder
	for _, r := range segment {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
