package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kissforge/kiss/internal/kbuild"
	"github.com/kissforge/kiss/internal/kconfig"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <package>...",
	Short: "Generate or refresh a package's checksums file",
	Long: `checksum fetches each named package's sources (skipping any
already present in the cache), hashes every hashable entry with BLAKE3, and
writes the result to the package's checksums file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChecksum,
}

func runChecksum(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := kconfig.Load(cfgFile)
	if err != nil {
		return err
	}

	orchestrator := kbuild.New(ctx, cfg)
	defer orchestrator.Shutdown()
	defer orchestrator.Cleanup()

	for _, name := range args {
		if err := orchestrator.GenerateChecksums(ctx, name); err != nil {
			return fmt.Errorf("checksum %s failed: %w", name, err)
		}
	}

	return nil
}
