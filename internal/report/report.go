// Package report writes the JSON record of a build: its inputs, the variants
// compiled and every artifact with its sha256.
package report

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"git.home.luguber.info/inful/spvbuild/internal/git"
	"git.home.luguber.info/inful/spvbuild/internal/variant"
)

// BuildReport represents a complete record of a build's inputs and outputs.
type BuildReport struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Duration  int64     `json:"duration_ms"`
	Inputs    Inputs    `json:"inputs"`
	Variants  []Variant `json:"variants"`
	// Artifacts are sorted by output path.
	Artifacts []variant.ArtifactInfo `json:"artifacts"`
	Skipped   []string               `json:"skipped,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Inputs captures what the build was run on.
type Inputs struct {
	Profile      string        `json:"profile"`
	Backend      string        `json:"backend"`
	ShaderRoot   string        `json:"shader_root"`
	ManifestHash string        `json:"manifest_sha256"`
	SourceHash   string        `json:"source_sha256,omitempty"`
	Revision     *git.Revision `json:"revision,omitempty"`
}

// Variant summarizes one compiled variant.
type Variant struct {
	Project     string `json:"project"`
	Combination string `json:"combination"`
	Units       int    `json:"units"`
	Skipped     int    `json:"skipped"`
	Duration    int64  `json:"duration_ms"`
}

// New creates a report for a build started at start.
func New(id string, start time.Time, inputs Inputs) *BuildReport {
	return &BuildReport{
		ID:        id,
		Timestamp: start.UTC(),
		Inputs:    inputs,
		Variants:  []Variant{},
		Artifacts: []variant.ArtifactInfo{},
	}
}

// AddResult records the outcome of one variant.
func (r *BuildReport) AddResult(res *variant.Result) {
	r.Variants = append(r.Variants, Variant{
		Project:     res.Variant.Project.Name,
		Combination: res.Variant.Key(),
		Units:       len(res.Artifacts),
		Skipped:     len(res.Skipped),
		Duration:    res.Duration.Milliseconds(),
	})
	r.Artifacts = append(r.Artifacts, res.Artifacts...)
	r.Skipped = append(r.Skipped, res.Skipped...)
}

// Finish sets the final status and duration. A non-nil err is recorded.
func (r *BuildReport) Finish(status string, d time.Duration, err error) {
	r.Status = status
	r.Duration = d.Milliseconds()
	if err != nil {
		r.Error = err.Error()
	}
	sort.SliceStable(r.Artifacts, func(i, j int) bool {
		return r.Artifacts[i].Output < r.Artifacts[j].Output
	})
	sort.Strings(r.Skipped)
}

// ArtifactHashes maps output path to sha256.
func (r *BuildReport) ArtifactHashes() map[string]string {
	hashes := make(map[string]string, len(r.Artifacts))
	for _, a := range r.Artifacts {
		hashes[a.Output] = a.SHA256
	}
	return hashes
}

// ToJSON serializes the report to JSON.
func (r *BuildReport) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a report from JSON.
func FromJSON(data []byte) (*BuildReport, error) {
	var r BuildReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

// Write stores the report at path, creating parent directories.
func (r *BuildReport) Write(path string) error {
	data, err := r.ToJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	//nolint:gosec // reports are meant to be readable by CI tooling
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// HashFile returns the hex sha256 of the file at path.
func HashFile(path string) (string, error) {
	// #nosec G304 - path is the manifest chosen by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
