// Package gitinfo resolves repository provenance for recorded baselines.
package gitinfo

import (
	"github.com/go-git/go-git/v5"
)

// Unknown is reported when provenance can't be resolved. recording baselines
// outside a checkout is fine, they just carry no revision.
const Unknown = "unknown"

// Info is the provenance stamped into baseline metadata.
type Info struct {
	Revision string `yaml:"revision"`
	Branch   string `yaml:"branch"`
}

// Resolve returns the revision and branch of the repository containing dir.
// never fails: outside a repository (or before the first commit) both fields
// are "unknown".
func Resolve(dir string) Info {
	info := Info{Revision: Unknown, Branch: Unknown}

	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return info
	}

	head, err := repo.Head()
	if err != nil {
		return info // empty repo, no commits yet
	}

	info.Revision = head.Hash().String()[:8]
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	} else {
		info.Branch = "detached"
	}
	return info
}

// Revision returns the short commit hash of HEAD for the repository
// containing dir, "unknown" when unresolvable.
func Revision(dir string) string {
	return Resolve(dir).Revision
}
