package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/wasvm/wasm-acceptor/types"
)

const (
	// ManifestExt is the extension of group manifests.
	ManifestExt = ".json"

	// SpectestModule is the shared host module at the corpus root that most
	// groups import from.
	SpectestModule = "spectest.wasm"
)

// Discover lists every directory below root as a candidate test group,
// sorted by name. Groups without a manifest are returned with an empty
// ManifestPath so callers can skip them.
func Discover(root string) ([]types.TestGroup, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus root '%s': %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("corpus root not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus root %s is not a directory", absRoot)
	}

	var groups []types.TestGroup
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || p == absRoot {
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		groups = append(groups, NewGroup(absRoot, filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus: %w", err)
	}

	SortGroups(groups)
	return groups, nil
}

// NewGroup builds the TestGroup for name under root, resolving its manifest.
func NewGroup(root, name string) types.TestGroup {
	dir := filepath.Join(root, filepath.FromSlash(name))
	g := types.TestGroup{
		Name:     name,
		Dir:      dir,
		Proposal: types.ProposalFromName(name),
	}
	manifest := filepath.Join(dir, path.Base(name)+ManifestExt)
	if info, err := os.Stat(manifest); err == nil && info.Mode().IsRegular() {
		g.ManifestPath = manifest
	}
	return g
}

// SortGroups orders groups lexicographically by name.
func SortGroups(groups []types.TestGroup) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
}

// Runnable drops the groups that have no manifest.
func Runnable(groups []types.TestGroup) []types.TestGroup {
	out := make([]types.TestGroup, 0, len(groups))
	for _, g := range groups {
		if g.HasManifest() {
			out = append(out, g)
		}
	}
	return out
}

// Filter keeps groups whose full name or base name matches one of the glob
// patterns. No patterns keeps everything.
func Filter(groups []types.TestGroup, patterns []string) ([]types.TestGroup, error) {
	if len(patterns) == 0 {
		return groups, nil
	}
	for _, p := range patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", p, err)
		}
	}

	out := make([]types.TestGroup, 0, len(groups))
	for _, g := range groups {
		for _, p := range patterns {
			full, _ := path.Match(p, g.Name)
			base, _ := path.Match(p, g.BaseName())
			if full || base {
				out = append(out, g)
				break
			}
		}
	}
	return out, nil
}
