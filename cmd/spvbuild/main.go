package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/spvbuild/cmd/spvbuild/commands"
	"git.home.luguber.info/inful/spvbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spvbuild/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("spvbuild"),
		kong.Description("Compile GLSL and WGSL shader variants to SPIR-V"),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
