package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kissforge/kiss/internal/kbuild"
	"github.com/kissforge/kiss/internal/kconfig"
)

var removeCmd = &cobra.Command{
	Use:   "remove <package>...",
	Short: "Remove one or more installed packages",
	Long: `remove deletes every file a package's manifest lists from the
configured root, skipping any /etc file whose content no longer matches
what the package originally installed, then drops the package's entry from
the installed database.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := kconfig.Load(cfgFile)
	if err != nil {
		return err
	}

	orchestrator := kbuild.New(ctx, cfg)
	defer orchestrator.Shutdown()
	defer orchestrator.Cleanup()

	for _, name := range args {
		if err := orchestrator.Remove(name); err != nil {
			return fmt.Errorf("remove %s failed: %w", name, err)
		}
	}

	return nil
}
