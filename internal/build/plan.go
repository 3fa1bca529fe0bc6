package build

import (
	"git.home.luguber.info/inful/spvbuild/internal/config"
	"git.home.luguber.info/inful/spvbuild/internal/discovery"
	"git.home.luguber.info/inful/spvbuild/internal/manifest"
	"git.home.luguber.info/inful/spvbuild/internal/output"
	"git.home.luguber.info/inful/spvbuild/internal/variant"
)

// PlannedVariant is one variant as it would be built.
type PlannedVariant struct {
	Variant   manifest.Variant
	OutputDir string
	Units     []discovery.Unit
}

// Plan expands the manifest into variants and lists their units without compiling.
func Plan(cfg *config.Config, projects []string) ([]PlannedVariant, error) {
	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return nil, err
	}
	if err := m.Validate(cfg.ShaderRoot); err != nil {
		return nil, err
	}
	variants, err := selectVariants(m, projects)
	if err != nil {
		return nil, err
	}

	layout := output.Layout{Root: cfg.OutputRoot, Profile: cfg.Profile, KeepStageSuffix: cfg.Output.KeepStageSuffix}
	vc := &variant.Compiler{SourceRoot: cfg.ShaderRoot, Backend: cfg.Compiler.Backend}

	// Units depend only on the project, not the combination.
	unitsByProject := make(map[string][]discovery.Unit)
	planned := make([]PlannedVariant, 0, len(variants))
	for _, v := range variants {
		units, ok := unitsByProject[v.Project.Name]
		if !ok {
			units, err = vc.Units(v)
			if err != nil {
				return nil, err
			}
			unitsByProject[v.Project.Name] = units
		}
		planned = append(planned, PlannedVariant{
			Variant:   v,
			OutputDir: layout.VariantDir(v.Project.Name, v.Combination),
			Units:     units,
		})
	}
	return planned, nil
}
