// Package kerrors defines the error taxonomy shared across the package
// manager's core components. Every fatal condition the orchestrator needs
// to report distinctly is a typed value here rather than an ad hoc string,
// so callers can branch on kind with errors.As instead of substring checks.
package kerrors

import "fmt"

// PackageNotFoundError means name is missing from every repository in the
// search path and is not currently installed.
type PackageNotFoundError struct {
	Name string
}

func (e *PackageNotFoundError) Error() string {
	return fmt.Sprintf("package not found: %s", e.Name)
}

// PackageNotInstalledError means a queried name is absent from the
// installed database.
type PackageNotInstalledError struct {
	Name string
}

func (e *PackageNotInstalledError) Error() string {
	return fmt.Sprintf("package not installed: %s", e.Name)
}

// VersionFileMissingError means a package directory has no version file.
type VersionFileMissingError struct {
	Path string
}

func (e *VersionFileMissingError) Error() string {
	return fmt.Sprintf("version file missing: %s", e.Path)
}

// SourcesFileMissingError means a package directory has no sources file.
type SourcesFileMissingError struct {
	Path string
}

func (e *SourcesFileMissingError) Error() string {
	return fmt.Sprintf("sources file missing: %s", e.Path)
}

// SourceUnresolvableError means a sources line matched none of the known
// source kinds (git, http, local-relative, local-absolute, cached).
type SourceUnresolvableError struct {
	Line string
}

func (e *SourceUnresolvableError) Error() string {
	return fmt.Sprintf("unresolvable source: %q", e.Line)
}

// HTTPError wraps a transport, status, or timeout failure from a download.
type HTTPError struct {
	URL string
	Err error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http fetch %s: %v", e.URL, e.Err)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// GitError wraps a clone, fetch, or checkout failure.
type GitError struct {
	URL string
	Err error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git fetch %s: %v", e.URL, e.Err)
}

func (e *GitError) Unwrap() error { return e.Err }

// ChecksumMismatchError is fatal at the first mismatch; it is never
// downgraded to a warning.
type ChecksumMismatchError struct {
	Package  string
	Index    int
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch at entry %d: expected %s, got %s",
		e.Package, e.Index, e.Expected, e.Actual)
}

// ManifestInvalidError reports how many manifest entries do not exist on
// disk after extraction.
type ManifestInvalidError struct {
	Package string
	Missing int
}

func (e *ManifestInvalidError) Error() string {
	return fmt.Sprintf("%s: manifest invalid, %d missing file(s)", e.Package, e.Missing)
}

// ConflictError reports file paths a new package shares with an already
// installed one, when choice (alternatives) mode is disabled.
type ConflictError struct {
	Package   string
	Conflicts []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("package %q conflicts with another package over %d file(s); rerun with choice mode to create alternatives",
		e.Package, len(e.Conflicts))
}

// BuildFailedError reports a non-zero exit status from a package's build
// script.
type BuildFailedError struct {
	Package string
	Status  int
}

func (e *BuildFailedError) Error() string {
	return fmt.Sprintf("%s: build failed with status %d", e.Package, e.Status)
}

// BinaryNotCachedError means a package has no built tarball waiting in the
// binary directory yet; it must be built before it can be installed.
type BinaryNotCachedError struct {
	Name string
}

func (e *BinaryNotCachedError) Error() string {
	return fmt.Sprintf("%s: no cached binary, run build first", e.Name)
}

// UnknownTarballFormatError means a tarball's extension does not match any
// of the five supported compression codecs.
type UnknownTarballFormatError struct {
	Path string
}

func (e *UnknownTarballFormatError) Error() string {
	return fmt.Sprintf("unknown tarball format: %s", e.Path)
}

// PermissionDeniedError means an operation that requires root privileges
// (installation) was attempted without them.
type PermissionDeniedError struct {
	Operation string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s requires root privileges", e.Operation)
}
