package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kissforge/kiss/internal/kbuild"
	"github.com/kissforge/kiss/internal/kconfig"
)

var buildCmd = &cobra.Command{
	Use:   "build <package>...",
	Short: "Resolve dependencies and build one or more packages from source",
	Long: `build resolves the dependency graph rooted at the named packages,
then builds every package that does not already have a matching cached
binary, deepest dependency first.

Examples:
  kiss build vim                # build vim and its unbuilt dependencies
  kiss build vim neovim         # build several packages in one pass`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := kconfig.Load(cfgFile)
	if err != nil {
		return err
	}

	orchestrator := kbuild.New(ctx, cfg)
	defer orchestrator.Shutdown()
	defer orchestrator.Cleanup()

	if err := orchestrator.Build(ctx, args); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	return nil
}
