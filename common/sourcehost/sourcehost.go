// Package sourcehost reads commit metadata from an app's source repository.
package sourcehost

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/lyzr/launchpad/common/models"
)

// Commit is the metadata recorded on a build job
type Commit struct {
	SHA     string
	Message string
	Author  string
}

// Metadata returns the commit as build job metadata entries
func (c *Commit) Metadata() map[string]string {
	return map[string]string{
		models.MetaCommitSHA:     c.SHA,
		models.MetaCommitMessage: c.Message,
		models.MetaCommitAuthor:  c.Author,
	}
}

// CommitResolver looks up the head commit of a branch
type CommitResolver interface {
	LatestCommit(ctx context.Context, cloneURL, branch string) (*Commit, error)
}

// GitCommitResolver resolves commits with a shallow, in-memory clone
type GitCommitResolver struct {
	// Token is sent as HTTP basic auth password when set
	Token   string
	Timeout time.Duration

	// Guard, when set, vets clone URLs before any network access
	Guard *URLGuard
}

// NewGitCommitResolver creates a resolver
func NewGitCommitResolver(token string, timeout time.Duration) *GitCommitResolver {
	return &GitCommitResolver{Token: token, Timeout: timeout}
}

// LatestCommit implements CommitResolver. A URL rejected by the guard wraps
// ErrBlockedSource; every other failure wraps models.ErrUpstreamUnavailable.
func (r *GitCommitResolver) LatestCommit(ctx context.Context, cloneURL, branch string) (*Commit, error) {
	if r.Guard != nil {
		if err := r.Guard.Validate(cloneURL); err != nil {
			return nil, err
		}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	opts := &git.CloneOptions{
		URL:          cloneURL,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}
	if r.Token != "" {
		opts.Auth = &http.BasicAuth{Username: "x-access-token", Password: r.Token}
	}

	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, opts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w: %w", cloneURL, models.ErrUpstreamUnavailable, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head of %s: %w: %w", cloneURL, models.ErrUpstreamUnavailable, err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w: %w", head.Hash(), models.ErrUpstreamUnavailable, err)
	}

	return &Commit{
		SHA:     commit.Hash.String(),
		Message: strings.TrimSpace(commit.Message),
		Author:  commit.Author.Name,
	}, nil
}
