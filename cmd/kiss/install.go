package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kissforge/kiss/internal/kbuild"
	"github.com/kissforge/kiss/internal/kconfig"
	"github.com/kissforge/kiss/internal/kerrors"
	"github.com/kissforge/kiss/internal/pkgrepo"
)

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install a built tarball for each named package",
	Long: `install extracts each package's most recently built tarball into
the configured root, detecting conflicts against every other installed
package and merging /etc files that have been locally modified.

Run "kiss build" first if a package has no cached tarball yet.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := kconfig.Load(cfgFile)
	if err != nil {
		return err
	}

	orchestrator := kbuild.New(ctx, cfg)
	defer orchestrator.Shutdown()
	defer orchestrator.Cleanup()

	for _, name := range args {
		pkg, err := pkgrepo.FindPackage(cfg.RepoPath, name)
		if err != nil {
			return err
		}
		tarballPath, ok := pkgrepo.CachedBinary(cfg.BinDir(), name, pkg.Version, string(cfg.Compress))
		if !ok {
			return &kerrors.BinaryNotCachedError{Name: name}
		}
		if err := orchestrator.Install(name, tarballPath); err != nil {
			return fmt.Errorf("install %s failed: %w", name, err)
		}
	}

	return nil
}
