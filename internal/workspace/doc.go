// Package workspace manages the staging directory used by the exec compiler
// backend. Expanded sources are written at stable relative paths below it so
// that compiler output does not depend on where the directory lives.
//
// Ephemeral mode creates a uniquely named directory per build and removes it
// afterwards. Persistent mode uses a fixed directory that is kept for
// inspection (build.keep_workspace).
package workspace
