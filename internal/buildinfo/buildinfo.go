// Package buildinfo exposes compile-time metadata shared across the server.
package buildinfo

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	log "github.com/sirupsen/logrus"
)

// The following variables are overridden via ldflags during release builds.
// Defaults cover local development builds.
var (
	// Version is the semantic version or git describe output of the binary.
	Version = "dev"

	// Commit is the git commit SHA baked into the binary.
	Commit = "none"

	// BuildDate records when the binary was built in UTC.
	BuildDate = "unknown"
)

// ResolveFromGit fills in Commit and BuildDate from the local .git directory
// when no ldflags stamp was baked into the binary (the common case for a
// `go run`/local build rather than a release pipeline).
func ResolveFromGit(dir string) {
	if Commit != "none" {
		return
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.Debugf("buildinfo: no git repository at %s: %v", dir, err)
		return
	}
	head, err := repo.Head()
	if err != nil {
		log.Debugf("buildinfo: read HEAD: %v", err)
		return
	}
	Commit = head.Hash().String()

	commitObj, err := repo.CommitObject(head.Hash())
	if err != nil {
		log.Debugf("buildinfo: read HEAD commit: %v", err)
		return
	}
	BuildDate = commitObj.Author.When.UTC().Format(time.RFC3339)
}

// String renders a one-line summary suitable for a --status banner.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, BuildDate)
}
