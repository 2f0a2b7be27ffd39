// Package proposals describes the post-MVP feature proposals a corpus can be
// converted and run with, and the script prefixes excluded from conversion.
package proposals

import (
	"fmt"
	"sort"
	"strings"
)

// SIMDPrefix is the script prefix of the fixed-width SIMD tests in the core
// corpus.
const SIMDPrefix = "simd_"

// Proposal is a feature proposal with its own test subtree.
type Proposal struct {
	Name          string `yaml:"name" toml:"name"`
	ConverterFlag string `yaml:"converter_flag" toml:"converter_flag"` // passed to the converter for scripts of this proposal
	EngineFlag    string `yaml:"engine_flag,omitempty" toml:"engine_flag"` // passed to the engine for groups of this proposal
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
}

// Set is an ordered list of proposals, unique by name.
type Set []Proposal

// Defaults returns the known proposals, all disabled.
func Defaults() Set {
	return Set{
		{Name: "annotations", ConverterFlag: "--enable-annotations"},
		{Name: "exception-handling", ConverterFlag: "--enable-exceptions"},
		{Name: "extended-const", ConverterFlag: "--enable-extended-const"},
		{Name: "function-references", ConverterFlag: "--enable-function-references"},
		{Name: "gc", ConverterFlag: "--enable-gc"},
		{Name: "memory64", ConverterFlag: "--enable-memory64"},
		{Name: "multi-memory", ConverterFlag: "--enable-multi-memory"},
		{Name: "relaxed-simd", ConverterFlag: "--enable-relaxed-simd"},
		{Name: "tail-call", ConverterFlag: "--enable-tail-call"},
		{Name: "threads", ConverterFlag: "--enable-threads"},
	}
}

// Lookup finds a proposal by name.
func (s Set) Lookup(name string) (Proposal, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Proposal{}, false
}

// Enable returns a copy of s with the named proposals enabled. Unknown names
// are an error so that typos do not silently shrink a run.
func (s Set) Enable(names ...string) (Set, error) {
	out := append(Set(nil), s...)
	var unknown []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		found := false
		for i := range out {
			if out[i].Name == name {
				out[i].Enabled = true
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown proposals: %s (known: %s)", strings.Join(unknown, ", "), strings.Join(s.Names(), ", "))
	}
	return out, nil
}

// Merge overlays other on s: entries with the same name are replaced, new
// names are appended.
func (s Set) Merge(other Set) Set {
	out := append(Set(nil), s...)
	for _, p := range other {
		replaced := false
		for i := range out {
			if out[i].Name == p.Name {
				out[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out
}

// Enabled returns the enabled proposals sorted by name.
func (s Set) Enabled() []Proposal {
	var out []Proposal
	for _, p := range s {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all proposal names in set order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for _, p := range s {
		names = append(names, p.Name)
	}
	return names
}

// EngineArgs returns the engine flags for a group of the given proposal.
// Core groups (empty proposal) and proposals without an engine flag get none.
func (s Set) EngineArgs(proposal string) []string {
	if proposal == "" {
		return nil
	}
	p, ok := s.Lookup(proposal)
	if !ok || p.EngineFlag == "" {
		return nil
	}
	return strings.Fields(p.EngineFlag)
}

// Validate checks names are unique and non-empty.
func (s Set) Validate() error {
	seen := make(map[string]bool, len(s))
	for i, p := range s {
		if p.Name == "" {
			return fmt.Errorf("proposal %d has no name", i)
		}
		if strings.ContainsAny(p.Name, `/\`) {
			return fmt.Errorf("proposal name %q must not contain path separators", p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate proposal %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Excluded reports whether a script name starts with one of the prefixes.
func Excluded(script string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(script, prefix) {
			return true
		}
	}
	return false
}
