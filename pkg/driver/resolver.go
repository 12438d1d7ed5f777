package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/lctr/record-envr/pkg/envr"
)

var ErrExtendsCycle = errors.New("scope: extends cycle")

// Fetcher materializes a git-hosted parent document and returns the
// directory holding the checked-out tree.
type Fetcher interface {
	Fetch(ctx context.Context, spec *ExtendsSpec) (string, error)
}

// Resolver follows extends links and assembles the full scope chain.
type Resolver struct {
	// Git fetches git extends. Documents with git extends fail to resolve
	// when it is nil.
	Git Fetcher
	// Trace receives one line per document loaded. Optional.
	Trace io.Writer
}

// Resolve returns the environment for doc with every ancestor document
// stacked beneath it. The innermost level of a parent document becomes the
// parent of doc's outermost level.
func (r *Resolver) Resolve(ctx context.Context, doc *Document) (*envr.Env[string, any], error) {
	chain, err := r.collect(ctx, doc)
	if err != nil {
		return nil, err
	}
	var env *envr.Env[string, any]
	for i := len(chain) - 1; i >= 0; i-- {
		env = chain[i].attach(env)
	}
	return env, nil
}

// ResolvePath loads the document at path and resolves it.
func (r *Resolver) ResolvePath(ctx context.Context, path string) (*envr.Env[string, any], error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	return r.Resolve(ctx, doc)
}

// collect returns doc followed by its ancestors, innermost first.
func (r *Resolver) collect(ctx context.Context, doc *Document) ([]*Document, error) {
	seen := make(map[string]struct{})
	var chain []*Document
	cur := doc
	key := documentKey(doc.Path)
	for {
		if _, ok := seen[key]; ok {
			names := make([]string, 0, len(chain)+1)
			for _, d := range chain {
				names = append(names, d.Name)
			}
			names = append(names, cur.Name)
			return nil, fmt.Errorf("%w: %s", ErrExtendsCycle, strings.Join(names, " -> "))
		}
		seen[key] = struct{}{}
		chain = append(chain, cur)
		r.tracef("scope %s: %s (%d levels)\n", cur.Name, cur.Path, len(cur.Levels))

		if cur.Extends == nil {
			return chain, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, nextKey, err := r.loadParent(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur, key = next, nextKey
	}
}

func (r *Resolver) loadParent(ctx context.Context, doc *Document) (*Document, string, error) {
	spec := doc.Extends
	if !spec.IsGit() {
		path := spec.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(filepath.Dir(doc.Path), filepath.FromSlash(path))
		}
		parent, err := LoadDocument(path)
		if err != nil {
			return nil, "", fmt.Errorf("scope %s: extends: %w", doc.Name, err)
		}
		return parent, documentKey(parent.Path), nil
	}

	if r.Git == nil {
		return nil, "", fmt.Errorf("scope %s: extends %s: git sources are not enabled", doc.Name, spec.Git)
	}
	dir, err := r.Git.Fetch(ctx, spec)
	if err != nil {
		return nil, "", fmt.Errorf("scope %s: extends %s: %w", doc.Name, spec.Git, err)
	}
	r.tracef("git %s checked out at %s\n", spec.Git, dir)
	parent, err := LoadDocument(filepath.Join(dir, filepath.FromSlash(spec.File)))
	if err != nil {
		return nil, "", fmt.Errorf("scope %s: extends: %w", doc.Name, err)
	}
	return parent, fmt.Sprintf("git+%s@%s#%s", spec.Git, gitDescriptor(spec), spec.File), nil
}

func (r *Resolver) tracef(format string, args ...any) {
	if r.Trace == nil {
		return
	}
	fmt.Fprintf(r.Trace, format, args...)
}

func documentKey(path string) string {
	return filepath.Clean(path)
}
