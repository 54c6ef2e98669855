package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepoWithCommit creates a repository with a single commit and returns
// its directory and full commit hash.
func initRepoWithCommit(t *testing.T) (dir, hash string) {
	dir = t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("content"), 0o600))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("file.txt")
	require.NoError(t, err)

	commit, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir, commit.String()
}

func TestResolve(t *testing.T) {
	dir, hash := initRepoWithCommit(t)

	info := Resolve(dir)
	assert.Equal(t, hash[:8], info.Revision)
	assert.Equal(t, "master", info.Branch)
}

func TestResolveFromSubdirectory(t *testing.T) {
	dir, hash := initRepoWithCommit(t)
	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	assert.Equal(t, hash[:8], Revision(sub), "dot-git detection walks up from subdirectories")
}

func TestResolveOutsideRepo(t *testing.T) {
	info := Resolve(t.TempDir())
	assert.Equal(t, Unknown, info.Revision)
	assert.Equal(t, Unknown, info.Branch)
}

func TestResolveEmptyRepo(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	assert.Equal(t, Unknown, Revision(dir), "no commits yet means no revision")
}
