// Package history retrieves prior committed revisions of catalog files
// from a git repository, in-process via go-git.
//
// The sync pipeline diffs the working copy of the source catalog against
// its previous committed state. "Previous" deliberately means the
// second-most-recent commit touching the file and nothing older: a
// shallow diff window keeps the workload computation cheap and
// predictable. Callers must treat every failure here as "no previous
// snapshot": a missing or unreadable history degrades to translating
// everything, never to aborting the run.
package history

import (
	"fmt"
	"io"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/catsync/catsync/catalog"
)

// Provider reads prior catalog revisions from the repository containing
// the given directory.
type Provider struct {
	repoDir string
}

// NewProvider returns a Provider rooted at repoDir. The repository is
// opened lazily on each query; a directory that is not inside a git
// repository is reported as an error by Previous.
func NewProvider(repoDir string) *Provider {
	return &Provider{repoDir: repoDir}
}

// Previous returns the catalog at path as of the second-most-recent
// commit that touched it. It returns an error when the directory is not
// a repository, fewer than two such commits exist, or the prior content
// is not a valid catalog.
func (p *Provider) Previous(path string) (*catalog.File, error) {
	repo, err := git.PlainOpenWithOptions(p.repoDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", p.repoDir, err)
	}

	rel, err := p.repoRelPath(repo, path)
	if err != nil {
		return nil, err
	}

	commit, err := secondMostRecent(repo, rel)
	if err != nil {
		return nil, err
	}

	file, err := commit.File(rel)
	if err != nil {
		return nil, fmt.Errorf("reading %s from commit %s: %w", rel, commit.Hash, err)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("reading blob for %s: %w", rel, err)
	}

	f, err := catalog.Parse([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("previous revision of %s: %w", rel, err)
	}
	return f, nil
}

// Dirty reports whether path has uncommitted changes (staged or in the
// worktree). A clean file never appears in the status map.
func (p *Provider) Dirty(path string) (bool, error) {
	repo, err := git.PlainOpenWithOptions(p.repoDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return false, fmt.Errorf("opening repository at %s: %w", p.repoDir, err)
	}
	rel, err := p.repoRelPath(repo, path)
	if err != nil {
		return false, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("resolving worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("reading worktree status: %w", err)
	}
	fs, ok := status[rel]
	if !ok {
		return false, nil
	}
	return fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified, nil
}

// repoRelPath converts path into a slash-separated path relative to the
// repository worktree root, as required by go-git's log filter.
func (p *Provider) repoRelPath(repo *git.Repository, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.repoDir, path)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("resolving worktree: %w", err)
	}
	rel, err := filepath.Rel(wt.Filesystem.Root(), path)
	if err != nil {
		return "", fmt.Errorf("resolving %s relative to repository: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// secondMostRecent walks the commit log restricted to rel and returns the
// second commit found.
func secondMostRecent(repo *git.Repository, rel string) (*object.Commit, error) {
	iter, err := repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return nil, fmt.Errorf("reading log for %s: %w", rel, err)
	}
	defer iter.Close()

	var commit *object.Commit
	for i := 0; i < 2; i++ {
		commit, err = iter.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%s has fewer than two revisions", rel)
		}
		if err != nil {
			return nil, fmt.Errorf("walking log for %s: %w", rel, err)
		}
	}
	return commit, nil
}
