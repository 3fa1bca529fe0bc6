// Package git records where a build's shader sources came from.
//
// It provides:
//   - the commit, branch and dirty state of the repository enclosing the
//     shader root, read with go-git (no git executable required)
//   - a deterministic content hash of a source tree, usable when the sources
//     are not under version control
package git
