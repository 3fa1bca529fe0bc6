// Package build provides the canonical build execution pipeline for spvbuild.
//
// DefaultBuildService loads the shader manifest, expands every project into
// its variants in declaration order and compiles each variant through
// variant.Compiler. Variants run sequentially unless more than one job is
// configured, in which case they run on a bounded errgroup and the first
// failure cancels the rest. Every error is fatal.
//
// Plan performs the same expansion without compiling, for the discover command.
package build
