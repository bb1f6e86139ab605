// Package filter implements the post matching engine.
//
// Filters are pure predicates over posts. Named filter sections from the
// configuration are built in two phases: first every section is constructed
// from its own keys, then combined filters resolve their references into
// live instances. The reference graph must be acyclic.
package filter

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"fedirelay/internal/config"
	"fedirelay/internal/model"
)

// Filter is a predicate over a post. Implementations are immutable after
// the build phase and safe for concurrent use.
type Filter interface {
	Test(post *model.Post) bool
}

// Instance pairs a filter with the inversion flag of one reference to it.
// The same filter may be referenced both inverted and plain.
type Instance struct {
	Invert bool
	Filter Filter
}

// Evaluate runs the filter and applies the reference's inversion.
func (i Instance) Evaluate(post *model.Post) bool {
	return i.Filter.Test(post) != i.Invert
}

// EvaluateAll reports whether the post passes every instance. An empty
// instance list passes everything.
func EvaluateAll(instances []Instance, post *model.Post) bool {
	for _, inst := range instances {
		if !inst.Evaluate(post) {
			return false
		}
	}
	return true
}

// Constructor builds a filter from its configuration section.
type Constructor func(cfg config.Filter) (Filter, error)

var typeNameRE = regexp.MustCompile(`^[a-z_]+$`)

var registry = make(map[string]Constructor)

// Register adds a filter type to the registry. Type names are restricted
// to lowercase letters and underscores; duplicate registration is an error.
func Register(name string, ctor Constructor) error {
	if !typeNameRE.MatchString(name) {
		return fmt.Errorf("invalid filter type name %q", name)
	}
	if _, ok := registry[name]; ok {
		return fmt.Errorf("filter type %q is already registered", name)
	}
	registry[name] = ctor
	return nil
}

func mustRegister(name string, ctor Constructor) {
	if err := Register(name, ctor); err != nil {
		panic(err)
	}
}

func init() {
	mustRegister("boost", newBoostFilter)
	mustRegister("mention", newMentionFilter)
	mustRegister("media", newMediaFilter)
	mustRegister("content", newContentFilter)
	mustRegister("spoiler", newSpoilerFilter)
	mustRegister("visibility", newVisibilityFilter)
	mustRegister("combined", newCombinedFilter)
}

// Set is the named filter namespace built from configuration.
type Set map[string]Filter

// Build constructs all named filters and resolves combined-filter
// references. Unknown types, malformed sections, unresolvable references,
// and reference cycles are all reported as errors.
func Build(specs map[string]config.Filter) (Set, error) {
	set := make(Set, len(specs))

	for _, name := range sortedKeys(specs) {
		spec := specs[name]
		ctor, ok := registry[spec.Type]
		if !ok {
			return nil, fmt.Errorf("filter %q: unknown type %q", name, spec.Type)
		}
		f, err := ctor(spec)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", name, err)
		}
		set[name] = f
	}

	if err := set.resolve(); err != nil {
		return nil, err
	}
	return set, nil
}

// ParseRef splits a filter reference into its base name and inversion
// flag. A leading '~' or '!' inverts that particular reference.
func ParseRef(ref string) (name string, invert bool) {
	name = strings.TrimLeft(ref, "~!")
	return name, name != ref
}

// Instances resolves a list of filter references into instances.
func (s Set) Instances(refs []string) ([]Instance, error) {
	instances := make([]Instance, 0, len(refs))
	for _, ref := range refs {
		name, invert := ParseRef(ref)
		f, ok := s[name]
		if !ok {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
		instances = append(instances, Instance{Invert: invert, Filter: f})
	}
	return instances, nil
}

const (
	stateResolving = 1
	stateResolved  = 2
)

// resolve wires combined filters to their referenced instances,
// depth-first so nested combined filters resolve before their parents.
func (s Set) resolve() error {
	states := make(map[string]int, len(s))

	var visit func(name string) error
	visit = func(name string) error {
		c, ok := s[name].(*combinedFilter)
		if !ok {
			return nil
		}
		switch states[name] {
		case stateResolved:
			return nil
		case stateResolving:
			return fmt.Errorf("combined filter %q: circular reference", name)
		}
		states[name] = stateResolving

		for _, ref := range c.refs {
			base, invert := ParseRef(ref)
			target, ok := s[base]
			if !ok {
				return fmt.Errorf("combined filter %q: unknown filter %q", name, base)
			}
			if err := visit(base); err != nil {
				return err
			}
			c.resolved = append(c.resolved, Instance{Invert: invert, Filter: target})
		}

		states[name] = stateResolved
		return nil
	}

	for _, name := range sortedKeys(s) {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// matchMask matches an account handle against a glob-style mask.
func matchMask(mask, acct string) bool {
	ok, err := path.Match(mask, acct)
	return err == nil && ok
}

// validateMasks rejects malformed glob masks up front so evaluation
// never has to deal with pattern errors.
func validateMasks(masks []string) error {
	for _, mask := range masks {
		if _, err := path.Match(mask, ""); err != nil {
			return fmt.Errorf("invalid mask %q: %w", mask, err)
		}
	}
	return nil
}
