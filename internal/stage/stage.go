// Package stage maps shader source file names to pipeline stages.
package stage

import "strings"

// Kind is a shader pipeline stage.
type Kind int

const (
	Unclassified Kind = iota
	Vertex
	Fragment
	Compute
	Geometry
	TessControl
	TessEvaluation
	Task
	Mesh
	RayGeneration
	AnyHit
	ClosestHit
	Miss
	Intersection
	Callable
)

type kindInfo struct {
	suffix string
	name   string
	glslc  string
}

var kinds = map[Kind]kindInfo{
	Vertex:         {"vert", "vertex", "vert"},
	Fragment:       {"frag", "fragment", "frag"},
	Compute:        {"comp", "compute", "comp"},
	Geometry:       {"geom", "geometry", "geom"},
	TessControl:    {"tesc", "tess_control", "tesc"},
	TessEvaluation: {"tese", "tess_evaluation", "tese"},
	Task:           {"task", "task", "task"},
	Mesh:           {"mesh", "mesh", "mesh"},
	RayGeneration:  {"rgen", "ray_generation", "rgen"},
	AnyHit:         {"rahit", "any_hit", "rahit"},
	ClosestHit:     {"rchit", "closest_hit", "rchit"},
	Miss:           {"rmiss", "miss", "rmiss"},
	Intersection:   {"rint", "intersection", "rint"},
	Callable:       {"rcall", "callable", "rcall"},
}

var bySuffix = func() map[string]Kind {
	m := make(map[string]Kind, len(kinds))
	for k, info := range kinds {
		m[info.suffix] = k
	}
	return m
}()

// Classify returns the stage named by the final dot-separated segment of stem
// (the file name without its source extension). Names without a recognized
// segment are Unclassified.
func Classify(stem string) Kind {
	i := strings.LastIndexByte(stem, '.')
	if i < 0 {
		return Unclassified
	}
	return bySuffix[stem[i+1:]]
}

// Split separates stem into its base name and stage. For an unclassified stem
// the base is the stem itself.
func Split(stem string) (string, Kind) {
	k := Classify(stem)
	if k == Unclassified {
		return stem, k
	}
	return strings.TrimSuffix(stem, "."+k.Suffix()), k
}

// Suffix is the file name segment that selects the stage, e.g. "comp".
func (k Kind) Suffix() string { return kinds[k].suffix }

// GlslcStage is the value passed to glslc's -fshader-stage flag.
func (k Kind) GlslcStage() string { return kinds[k].glslc }

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unclassified"
}

// All returns every classified stage in declaration order.
func All() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := Vertex; k <= Callable; k++ {
		out = append(out, k)
	}
	return out
}
