// Package depends implements the dependency resolver (component G): a
// depth-first walk of each requested package's depends file into two
// ordered lists, explicit (what the caller asked to build) and normal
// (everything pulled in to satisfy it, deepest first). Grounded on
// original_source/src/build_lib.rs's pkg_depends/pkg_build_all, with Open
// Question (c) fixed exactly as spec.md states: a package is appended to
// the normal list when `!expl || (dep_type == Make && cache.is_none())`
// evaluates true — i.e. every package reached as a dependency is appended,
// while a requested seed (walked with expl=true, isMake=false) is not.
package depends

import (
	"github.com/kissforge/kiss/internal/kerrors"
	"github.com/kissforge/kiss/internal/pkgrepo"
)

// Hooks lets the resolver consult the package locator, provides map,
// installed database, and binary cache without importing those packages
// directly, keeping this package a pure algorithm over caller-supplied
// state.
type Hooks struct {
	// ResolveProvides maps a requested name through the provides file, if
	// one redirects it, otherwise returns name unchanged.
	ResolveProvides func(name string) string
	// RepoPath returns the package's repository directory, and whether it
	// was found at all.
	RepoPath func(name string) (string, bool)
	// IsInstalled reports whether name already has an entry in the
	// installed database.
	IsInstalled func(name string) bool
	// HasCachedBinary reports whether a pre-built tarball for name already
	// exists in the binary directory.
	HasCachedBinary func(name string) bool
	// ReadDepends returns the (name, isMake) pairs listed in a package's
	// depends file, given its repository directory.
	ReadDepends func(repoPath string) ([]pkgrepo.Dependency, error)
}

// Set is the result of resolving one or more explicitly requested
// packages: Explicit holds the packages the caller asked to build (with any
// requested package that turned out to also be a dependency of another
// removed), and Normal holds every pulled-in dependency, ordered deepest
// first.
type Set struct {
	Explicit []string
	Normal   []string
}

// resolver carries the in-progress state a single Resolve call builds up;
// it exists so pkg_depends's recursive helper does not need to thread five
// parameters through every call by hand.
type resolver struct {
	hooks Hooks
	set   Set
}

// Resolve walks the dependency graph rooted at each of seeds and returns the
// explicit/normal split pkg_build_all computes, including the "drop
// duplicate explicit" step and the "remove pre-built dependencies from
// normal" step it performs before returning.
func Resolve(seeds []string, hooks Hooks) (*Set, error) {
	r := &resolver{hooks: hooks}

	for _, seed := range seeds {
		if err := r.depends(seed, true, true, false); err != nil {
			return nil, err
		}
		r.set.Explicit = append(r.set.Explicit, seed)
	}

	r.set.Explicit = dropDuplicatesAlsoInNormal(r.set.Explicit, r.set.Normal)

	var remainingNormal []string
	for _, pkg := range r.set.Normal {
		if hooks.HasCachedBinary != nil && hooks.HasCachedBinary(pkg) {
			continue
		}
		remainingNormal = append(remainingNormal, pkg)
	}
	r.set.Normal = remainingNormal

	return &r.set, nil
}

// depends is pkg_depends: expl is true only for a seed package the caller
// explicitly requested (every recursive call passes false); isMake is
// whether this package was pulled in as a build-time-only dependency.
func (r *resolver) depends(name string, expl, filter, isMake bool) error {
	name = r.hooks.ResolveProvides(name)

	if contains(r.set.Normal, name) {
		return nil
	}

	installed := r.hooks.IsInstalled != nil && r.hooks.IsInstalled(name)
	if !filter || contains(r.set.Explicit, name) || (!expl && installed) {
		return nil
	}

	repoPath, found := r.hooks.RepoPath(name)
	if !found {
		if installed {
			return nil
		}
		return &kerrors.PackageNotFoundError{Name: name}
	}

	deps, err := r.hooks.ReadDepends(repoPath)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if err := r.depends(dep.Name, false, filter, dep.Make); err != nil {
			return err
		}
	}

	cached := r.hooks.HasCachedBinary != nil && r.hooks.HasCachedBinary(name)
	if !expl || (isMake && !cached) {
		r.set.Normal = append(r.set.Normal, name)
	}

	return nil
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}

// dropDuplicatesAlsoInNormal removes any explicitly requested package that
// also ended up in the normal (pulled-in) list: it is needed as a
// dependency of another explicit package and should only be built once, in
// dependency order.
func dropDuplicatesAlsoInNormal(explicit, normal []string) []string {
	var kept []string
	for _, pkg := range explicit {
		if contains(normal, pkg) {
			continue
		}
		kept = append(kept, pkg)
	}
	return kept
}

// AllPackages returns normal followed by explicit, the build order
// pkg_build_all iterates: deepest dependencies first, requested packages
// last.
func (s *Set) AllPackages() []string {
	all := make([]string, 0, len(s.Normal)+len(s.Explicit))
	all = append(all, s.Normal...)
	all = append(all, s.Explicit...)
	return all
}
