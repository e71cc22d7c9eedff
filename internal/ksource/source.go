// Package ksource implements the source parser and resolver (component D):
// turning one line of a package's sources file into a typed Source, fixing
// REDESIGN FLAG "String-matching as control flow" (§9) by classifying the
// source kind once, up front, into an enum rather than re-deriving it from
// string prefixes at every call site downstream. Grounded on
// original_source/api/src/source.rs's parse_source_line/extract_repo_or_file_name,
// reimplemented against the teacher's fetch/hash idioms instead of kiss-rs's
// ureq-based downloader.
package ksource

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kissforge/kiss/internal/kerrors"
)

// Kind is the resolved variant of a Source, decided once at parse time.
type Kind int

const (
	// KindGit is a "git+<url>" line, fetched via internal/fetch's git path
	// and never extracted (Open Question (a)).
	KindGit Kind = iota
	// KindHTTP is an "http://" or "https://" line not already present in
	// the source cache.
	KindHTTP
	// KindCached is an "http://" or "https://" line whose target file
	// already exists in the source cache; treated exactly like the local
	// kinds from that point on.
	KindCached
	// KindLocalRelative is a path resolved against the package's repository
	// directory (most commonly a patch file shipped alongside the package).
	KindLocalRelative
	// KindLocalAbsolute is a path resolved from the filesystem root, tried
	// only when the relative candidate does not exist.
	KindLocalAbsolute
)

func (k Kind) String() string {
	switch k {
	case KindGit:
		return "git"
	case KindHTTP:
		return "http"
	case KindCached:
		return "cached"
	case KindLocalRelative:
		return "local-relative"
	case KindLocalAbsolute:
		return "local-absolute"
	default:
		return "unknown"
	}
}

// Source is one parsed line of a sources file.
type Source struct {
	Kind Kind
	// URL is the first whitespace-separated field, verbatim (including any
	// "git+" prefix and "?no-extract" suffix).
	URL string
	// SubPath is the second whitespace-separated field, if present: the
	// relative path to place the extracted/copied source under the build
	// directory.
	SubPath string
	// CachePath is the absolute path to the source's on-disk location in
	// the cache (KindHTTP: where the download will be written; KindCached:
	// where it already exists; KindGit: the repository checkout
	// directory). Empty for the local kinds, whose location is RepoRelative.
	CachePath string
	// RepoRelative is the absolute path a KindLocalRelative or
	// KindLocalAbsolute source resolves to.
	RepoRelative string
	// FileName is the basename used for the cache entry: the final path
	// segment of URL with any ".git" suffix stripped and any "#"/"@"
	// fragment truncated (Open Question (b)).
	FileName string
	// ExtractArchive is false when URL ends in "?no-extract" (always false
	// for KindGit, regardless of the suffix).
	ExtractArchive bool
}

// ParseLine classifies one sources-file line. repoPath is the package's
// repository directory (used to resolve local sources); sourceCacheDir
// is "<cache>/sources", under which packageName and the optional subpath
// are joined (used to resolve KindHTTP/KindCached/KindGit cache paths and to
// decide whether a URL has already been downloaded).
// A blank or comment line returns (nil, nil): not every line is a source.
func ParseLine(line, packageName, repoPath, sourceCacheDir string) (*Source, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	fields := strings.Fields(trimmed)
	url := fields[0]
	var subPath string
	if len(fields) > 1 {
		subPath = fields[1]
	}

	fileName := basename(url)
	if fileName == "" {
		return nil, &kerrors.SourceUnresolvableError{Line: line}
	}

	src := &Source{
		URL:      url,
		SubPath:  subPath,
		FileName: fileName,
		// Git sources are never extracted regardless of a "?no-extract"
		// suffix (Open Question (a)); every other kind honors the suffix.
		ExtractArchive: !strings.HasSuffix(url, "?no-extract"),
	}

	switch {
	case strings.HasPrefix(url, "git+"):
		src.Kind = KindGit
		src.ExtractArchive = false
		if sourceCacheDir != "" {
			src.CachePath = cachePath(sourceCacheDir, packageName, subPath, fileName)
		}
	case strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://"):
		cache := ""
		if sourceCacheDir != "" {
			cache = cachePath(sourceCacheDir, packageName, subPath, fileName)
		}
		if cache != "" && pathExists(cache) {
			src.Kind = KindCached
		} else {
			src.Kind = KindHTTP
		}
		src.CachePath = cache
	default:
		relative := filepath.Join(repoPath, url)
		if repoPath != "" && pathExists(relative) {
			src.Kind = KindLocalRelative
			src.RepoRelative = relative
			break
		}
		absolute := "/" + strings.TrimPrefix(url, "/")
		if pathExists(absolute) {
			src.Kind = KindLocalAbsolute
			src.RepoRelative = absolute
			break
		}
		if repoPath == "" {
			// No repository to resolve a relative candidate against and no
			// cache directory to pre-stage an HTTP/git source from: assume
			// the eventual relative location (callers doing cache-path-only
			// derivation, e.g. before a repo checkout exists).
			src.Kind = KindLocalRelative
			src.RepoRelative = relative
			break
		}
		return nil, &kerrors.SourceUnresolvableError{Line: line}
	}

	return src, nil
}

// cachePath replicates parse_source_line's join order: cache-dir, then
// package name, then the optional subPath, then the derived file name.
func cachePath(sourceCacheDir, packageName, subPath, fileName string) string {
	parts := []string{sourceCacheDir, packageName}
	if subPath != "" {
		parts = append(parts, subPath)
	}
	parts = append(parts, fileName)
	return filepath.Join(parts...)
}

// basename derives the cache/display file name for a source URL: the last
// "/"-separated, non-empty segment, with a trailing ".git" stripped (git
// URLs) and any "#" or "@" fragment truncated beforehand (Open Question (b):
// truncation happens unconditionally, not only for git sources).
func basename(url string) string {
	clean := url
	if i := strings.IndexAny(clean, "#@"); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSuffix(clean, "/")
	segments := strings.Split(clean, "/")
	last := segments[len(segments)-1]
	if last == "" {
		return ""
	}
	return strings.TrimSuffix(last, ".git")
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
