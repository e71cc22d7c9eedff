package fetch

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/kissforge/kiss/internal/kerrors"
	"github.com/kissforge/kiss/internal/ksource"
)

const defaultRemoteName = "origin"

// fetchGit reproduces pkg_source_git's sequence with go-git instead of
// libgit2: init the destination if it is not already a repository, ensure a
// remote pointing at the URL (stripped of its "git+" prefix) exists, fetch
// with pruning and FETCH_HEAD update, then force-checkout FETCH_HEAD. A
// git Source is never extracted (Open Question (a)): its CachePath is the
// working tree itself.
func (f *Fetcher) fetchGit(ctx context.Context, packageName string, src *ksource.Source) error {
	url := strings.TrimPrefix(src.URL, "git+")
	dest := src.CachePath

	repo, err := git.PlainOpen(dest)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dest, false)
	}
	if err != nil {
		return &kerrors.GitError{URL: url, Err: err}
	}

	remote, err := repo.Remote(defaultRemoteName)
	if errors.Is(err, git.ErrRemoteNotFound) {
		remote, err = repo.CreateRemote(&config.RemoteConfig{
			Name: defaultRemoteName,
			URLs: []string{url},
		})
	}
	if err != nil {
		return &kerrors.GitError{URL: url, Err: err}
	}

	err = remote.FetchContext(ctx, &git.FetchOptions{
		RemoteName: defaultRemoteName,
		Prune:      true,
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return &kerrors.GitError{URL: url, Err: err}
	}

	fetchHead, err := repo.Reference(plumbing.NewBranchReferenceName("FETCH_HEAD"), true)
	if err != nil {
		fetchHead, err = resolveFetchHead(repo)
		if err != nil {
			return &kerrors.GitError{URL: url, Err: err}
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return &kerrors.GitError{URL: url, Err: err}
	}

	if err := worktree.Checkout(&git.CheckoutOptions{
		Hash:  fetchHead.Hash(),
		Force: true,
	}); err != nil {
		return &kerrors.GitError{URL: url, Err: err}
	}

	return nil
}

// resolveFetchHead falls back to a remote-tracking reference when go-git has
// not materialized a literal FETCH_HEAD ref (it names the fetched tip
// differently depending on refspec): the last remote-tracking reference the
// repository's reference iterator yields stands in for pkg_source_git's
// find_reference("FETCH_HEAD") as the checkout target.
func resolveFetchHead(repo *git.Repository) (*plumbing.Reference, error) {
	refIter, err := repo.References()
	if err != nil {
		return nil, err
	}
	defer refIter.Close()

	var head *plumbing.Reference
	err = refIter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Name().IsRemote() {
			head = ref
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, errors.New("no remote-tracking reference found after fetch")
	}
	return head, nil
}
