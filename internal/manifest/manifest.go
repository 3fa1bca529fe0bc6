// Package manifest loads the shader build manifest: the ordered list of shader
// projects, their global macros and their optional macro combinations.
package manifest

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
)

// DefaultFileName is the manifest file name looked up under the shader source root.
const DefaultFileName = "make_shaders.yaml"

// KeySeparator joins the tokens of a macro combination into its output directory name.
const KeySeparator = "#"

// ShaderManifest is the in-memory form of the build manifest.
type ShaderManifest struct {
	Projects []ShaderProject `yaml:"projects"`
}

// ShaderProject is one named shader project. Name must match a directory under
// the shader source root.
type ShaderProject struct {
	Name                      string             `yaml:"name"`
	GlobalMacros              []string           `yaml:"global_macros"`
	OptionalMacroCombinations []MacroCombination `yaml:"optional_macro_combinations"`
}

// MacroCombination is the ordered list of optional macro tokens of one variant.
type MacroCombination []string

// Key joins the tokens with '#' in declared order. The empty combination has an empty key.
func (c MacroCombination) Key() string {
	return strings.Join(c, KeySeparator)
}

// Variant is one (project, macro combination) pairing.
type Variant struct {
	Project     ShaderProject
	Combination MacroCombination
}

// Key returns the combination key of the variant.
func (v Variant) Key() string { return v.Combination.Key() }

// Macros returns the full macro set of the variant: global macros as declared,
// followed by every optional token with prefix prepended.
func (v Variant) Macros(prefix string) []string {
	macros := make([]string, 0, len(v.Project.GlobalMacros)+len(v.Combination))
	macros = append(macros, v.Project.GlobalMacros...)
	for _, token := range v.Combination {
		macros = append(macros, prefix+token)
	}
	return macros
}

// String renders the variant for log lines and error messages.
func (v Variant) String() string {
	return fmt.Sprintf("%s[%s]", v.Project.Name, v.Key())
}

// Variants expands the project into its variants in declaration order. A project
// without optional combinations has exactly one variant with an empty combination.
func (p ShaderProject) Variants() []Variant {
	if len(p.OptionalMacroCombinations) == 0 {
		return []Variant{{Project: p, Combination: MacroCombination{}}}
	}
	variants := make([]Variant, 0, len(p.OptionalMacroCombinations))
	for _, combo := range p.OptionalMacroCombinations {
		variants = append(variants, Variant{Project: p, Combination: combo})
	}
	return variants
}

// Variants expands every project in declaration order.
func (m *ShaderManifest) Variants() []Variant {
	var variants []Variant
	for _, p := range m.Projects {
		variants = append(variants, p.Variants()...)
	}
	return variants
}

// Project returns the project with the given name.
func (m *ShaderManifest) Project(name string) (ShaderProject, bool) {
	for _, p := range m.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return ShaderProject{}, false
}

// rawManifest distinguishes an absent projects key from an empty list.
type rawManifest struct {
	Projects *[]ShaderProject `yaml:"projects"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*ShaderManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.ManifestMissing(path).Build()
		}
		return nil, errors.FileSystemError("failed to read shader manifest").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	m, err := Parse(data)
	if err != nil {
		return nil, errors.ManifestParseError(path, err).Build()
	}
	return m, nil
}

// Parse decodes a manifest document. Unknown keys are rejected so that a
// misspelled macro list is reported instead of silently compiling without it.
func Parse(data []byte) (*ShaderManifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawManifest
	if err := dec.Decode(&raw); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty manifest: missing required field %q", "projects")
		}
		return nil, err
	}
	if raw.Projects == nil {
		return nil, fmt.Errorf("missing required field %q", "projects")
	}

	m := &ShaderManifest{Projects: *raw.Projects}
	for i := range m.Projects {
		p := &m.Projects[i]
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("projects[%d]: missing required field %q", i, "name")
		}
		if p.GlobalMacros == nil {
			p.GlobalMacros = []string{}
		}
		if p.OptionalMacroCombinations == nil {
			p.OptionalMacroCombinations = []MacroCombination{}
		}
		for j := range p.OptionalMacroCombinations {
			if p.OptionalMacroCombinations[j] == nil {
				p.OptionalMacroCombinations[j] = MacroCombination{}
			}
		}
	}
	return m, nil
}

// Validate checks that project names and combination tokens are single path
// segments, that names are unique and that every project has a source
// directory under sourceRoot.
func (m *ShaderManifest) Validate(sourceRoot string) error {
	seen := make(map[string]struct{}, len(m.Projects))
	for _, p := range m.Projects {
		if !isPathSegment(p.Name) {
			return errors.ValidationError("project name must be a single directory name").
				WithContext("project", p.Name).
				Build()
		}
		for _, combo := range p.OptionalMacroCombinations {
			for _, token := range combo {
				if !isPathSegment(token) {
					return errors.ValidationError("macro combination token must be a single directory name").
						WithContext("project", p.Name).
						WithContext("combination", combo.Key()).
						WithContext("token", token).
						Build()
				}
			}
		}

		if _, dup := seen[p.Name]; dup {
			return errors.ValidationError("duplicate project name in manifest").
				WithContext("project", p.Name).
				Build()
		}
		seen[p.Name] = struct{}{}

		dir := filepath.Join(sourceRoot, p.Name)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return errors.ProjectDirectoryMissing(p.Name, dir).Build()
		}
	}
	return nil
}

// isPathSegment reports whether s names exactly one directory below its parent.
func isPathSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// Marshal renders the manifest as YAML.
func (m *ShaderManifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Example returns the manifest written by `spvbuild init`.
func Example() *ShaderManifest {
	return &ShaderManifest{
		Projects: []ShaderProject{
			{
				Name:         "pathtracer",
				GlobalMacros: []string{"PATH_TRACER"},
				OptionalMacroCombinations: []MacroCombination{
					{},
					{"MEDIUM"},
					{"MEDIUM", "DENOISE"},
				},
			},
			{
				Name:                      "postprocess",
				GlobalMacros:              []string{},
				OptionalMacroCombinations: []MacroCombination{},
			},
		},
	}
}
