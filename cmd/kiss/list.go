package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kissforge/kiss/internal/kconfig"
	"github.com/kissforge/kiss/internal/pkgrepo"
)

var listCmd = &cobra.Command{
	Use:   "list [package]...",
	Short: "List installed packages and their versions",
	Long: `list prints every installed package's name and version, sorted by
name. With arguments, only the named packages are printed (and an unknown
name is reported instead of silently skipped).`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := kconfig.Load(cfgFile)
	if err != nil {
		return err
	}

	dbDir := cfg.InstalledDBDir()
	entries, err := os.ReadDir(dbDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	installed := make(map[string]string, len(entries))
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version, verr := readInstalledVersion(filepath.Join(dbDir, entry.Name()))
		if verr != nil {
			continue
		}
		installed[entry.Name()] = version
		names = append(names, entry.Name())
	}

	if len(args) > 0 {
		names = args
	} else {
		names = pkgrepo.SortedNames(names)
	}

	w := cmd.OutOrStdout()
	for _, name := range names {
		version, ok := installed[name]
		if !ok {
			fmt.Fprintf(w, "%s: not installed\n", name)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", name, version)
	}

	return nil
}

func readInstalledVersion(pkgDBDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(pkgDBDir, "version"))
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty version file")
	}
	if len(fields) > 1 {
		return fields[0] + "-" + fields[1], nil
	}
	return fields[0], nil
}
