package pkgrepo

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ResolveProvides looks up pkg's replacement name in the provides file, the
// way pkg_get_provides scans for a "<replacement> <pkg>" line. A missing
// provides file or no matching entry both yield pkg unchanged.
func ResolveProvides(providesPath, pkg string) (string, error) {
	f, err := os.Open(providesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return pkg, nil
		}
		return "", err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) == 2 && parts[1] == pkg {
			return parts[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return pkg, nil
}

// ListProvides returns every "<replacement> -> <replaces>" entry in the
// provides file, matching list_provides's output format exactly.
func ListProvides(providesPath string) ([]string, error) {
	f, err := os.Open(providesPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		out = append(out, fmt.Sprintf("%s -> %s", parts[0], parts[1]))
	}
	return out, scanner.Err()
}

// AddOrRemoveProvides mutates the provides file at providesPath, mirroring
// add_remove_from_provides: when replacement is non-empty, it adds
// "<replacement> <replaces>" unless an identical or suffix-matching line
// already exists, in which case the identical line (if any) is removed
// instead; when replacement is empty, it removes every line whose replaces
// field starts with replaces. Either way the file is rewritten sorted.
func AddOrRemoveProvides(providesPath, replacement, replaces string) error {
	lines, err := readLinesIfExists(providesPath)
	if err != nil {
		return err
	}

	var providesLine string
	if replacement != "" {
		providesLine = replacement + " " + replaces
	} else {
		providesLine = replaces
	}

	switch {
	case replacement != "" && !containsExactOrSuffix(lines, providesLine):
		lines = append(lines, providesLine)
	case replacement == "":
		lines = filterOutPrefix(lines, replaces)
	default:
		lines = filterOutExact(lines, providesLine)
	}

	sort.Strings(lines)

	f, err := os.Create(providesPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

func readLinesIfExists(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func containsExactOrSuffix(lines []string, target string) bool {
	for _, line := range lines {
		if line == target || strings.HasSuffix(line, target) {
			return true
		}
	}
	return false
}

func filterOutPrefix(lines []string, prefix string) []string {
	var kept []string
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 && strings.HasPrefix(fields[1], prefix) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

func filterOutExact(lines []string, target string) []string {
	var kept []string
	for _, line := range lines {
		if line != target {
			kept = append(kept, line)
		}
	}
	return kept
}
