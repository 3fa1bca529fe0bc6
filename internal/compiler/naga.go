package compiler

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"git.home.luguber.info/inful/spvbuild/internal/discovery"
	"git.home.luguber.info/inful/spvbuild/internal/preprocess"
	"git.home.luguber.info/inful/spvbuild/internal/stage"
)

// nagaSession compiles WGSL in process. The profile only toggles debug names;
// naga has no optimizer.
type nagaSession struct {
	opts    Options
	version spirv.Version
}

func newNagaSession(opts Options) (Session, error) {
	major, minor, err := spirvVersion(opts.SPIRVVersion)
	if err != nil {
		return nil, initError(BackendNaga, err)
	}
	return &nagaSession{opts: opts, version: spirv.Version{Major: major, Minor: minor}}, nil
}

func (s *nagaSession) Backend() Backend { return BackendNaga }
func (s *nagaSession) Options() Options { return s.opts }

var nagaStages = map[stage.Kind]ir.ShaderStage{
	stage.Vertex:   ir.StageVertex,
	stage.Fragment: ir.StageFragment,
	stage.Compute:  ir.StageCompute,
}

func (s *nagaSession) Compile(ctx context.Context, unit discovery.Unit, source string) ([]byte, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	want, ok := nagaStages[unit.Stage]
	if !ok {
		return nil, compileError(unit, fmt.Sprintf("stage %s is not supported by the naga backend", unit.Stage), nil)
	}

	src, err := expand(unit, source, preprocess.Strip, s.opts)
	if err != nil {
		return nil, err
	}

	ast, err := naga.Parse(src.Text)
	if err != nil {
		return nil, compileError(unit, locate(err.Error(), src), err)
	}
	module, err := naga.LowerWithSource(ast, src.Text)
	if err != nil {
		return nil, compileError(unit, locate(err.Error(), src), err)
	}

	issues, err := naga.Validate(module)
	if err != nil {
		return nil, compileError(unit, err.Error(), err)
	}
	if len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for i := range issues {
			msgs = append(msgs, fmt.Sprintf("%s: %s", unit.Path, issues[i].Error()))
		}
		return nil, compileError(unit, strings.Join(msgs, "\n"), nil)
	}

	if err := checkEntryPoint(module, s.opts.EntryPoint, want); err != nil {
		return nil, compileError(unit, fmt.Sprintf("%s: %v", unit.Path, err), nil)
	}

	data, err := naga.GenerateSPIRV(module, spirv.Options{Version: s.version, Debug: s.opts.DebugInfo()})
	if err != nil {
		return nil, compileError(unit, err.Error(), err)
	}
	return data, nil
}

func checkEntryPoint(module *ir.Module, name string, want ir.ShaderStage) error {
	for _, ep := range module.EntryPoints {
		if ep.Name != name {
			continue
		}
		if ep.Stage != want {
			return fmt.Errorf("entry point %q has stage %s, file name says %s", name, stageName(ep.Stage), stageName(want))
		}
		return nil
	}
	return fmt.Errorf("no entry point named %q", name)
}

func stageName(s ir.ShaderStage) string {
	for k, v := range nagaStages {
		if v == s {
			return k.String()
		}
	}
	return "unknown"
}

var nagaLocations = []*regexp.Regexp{
	regexp.MustCompile(`line (\d+), column (\d+)`),
	regexp.MustCompile(`(?:^|\s)(\d+):(\d+): `),
}

// locate prefixes a naga error with the original file and line of the first
// position it mentions.
func locate(msg string, src *preprocess.Source) string {
	for _, re := range nagaLocations {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if origin, ok := src.Origin(n); ok {
			return fmt.Sprintf("%s:%d:%s: %s", origin.File, origin.Line, m[2], msg)
		}
	}
	if len(src.Lines) > 0 {
		return fmt.Sprintf("%s: %s", src.Lines[0].File, msg)
	}
	return msg
}
