package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/spvbuild/internal/build"
	"git.home.luguber.info/inful/spvbuild/internal/config"
)

// DiscoverCmd implements the 'discover' command.
type DiscoverCmd struct {
	Project []string `short:"P" help:"Only list the named project (repeatable)"`
	Profile string   `short:"p" help:"Profile used for the listed output directories"`
	Backend string   `help:"Compiler backend whose sources are listed (glslc|naga)"`
}

func (d *DiscoverCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	flags := BuildFlags{Profile: d.Profile, Backend: d.Backend}
	if err := flags.Apply(cfg); err != nil {
		return err
	}
	return RunDiscover(os.Stdout, cfg, d.Project)
}

// RunDiscover prints every planned variant with its output directory and units.
func RunDiscover(out io.Writer, cfg *config.Config, projects []string) error {
	planned, err := build.Plan(cfg, projects)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PROJECT\tCOMBINATION\tOUTPUT\tUNITS")
	for _, p := range planned {
		combo := p.Variant.Key()
		if combo == "" {
			combo = "-"
		}
		units, skipped := 0, 0
		for _, u := range p.Units {
			if u.Classified() {
				units++
			} else {
				skipped++
			}
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", p.Variant.Project.Name, combo, p.OutputDir, units)
		for _, u := range p.Units {
			if u.Classified() {
				_, _ = fmt.Fprintf(tw, "\t\t  %s\t%s\n", u.RelPath(), u.Stage)
			}
		}
		if skipped > 0 {
			_, _ = fmt.Fprintf(tw, "\t\t  (%d files without stage suffix)\t\n", skipped)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d variants\n", len(planned))
	return nil
}
