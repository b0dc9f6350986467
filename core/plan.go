package core

import (
	"fmt"

	"github.com/dosco/docfind/core/internal/docpath"
)

// plan is the compiled form of a field list: the projection sent to the
// store. Plans are shared and read-only. They never carry field values, so
// two lists that only differ in literal values may share one plan.
type plan struct {
	projection map[string]bool
}

// compilePlan validates every path of fields and collects the paths that
// can be fetched as is. Literal, map and dynamic fields are computed after
// the fetch and are not projected.
func compilePlan(fields []Field) (*plan, error) {
	p := &plan{}
	proj := make(map[string]bool)

	for _, f := range fields {
		switch f.Kind {
		case FieldBare:
			if err := docpath.Validate(f.Path); err != nil {
				return nil, err
			}
			proj[f.Path] = true

		case FieldPath:
			if err := docpath.Validate(f.Path); err != nil {
				return nil, err
			}
			if !f.Dynamic() && !f.Resolve {
				proj[f.Path] = true
			}
		}
	}

	if len(proj) != 0 {
		p.projection = proj
	}
	return p, nil
}

// plan returns the compiled plan of fields, from the cache when possible.
func (df *DocFind) plan(fields []Field) (*plan, error) {
	if len(fields) == 0 {
		return &plan{}, nil
	}

	key, err := planKey(fields)
	if err != nil {
		return compilePlan(fields)
	}
	if p, ok := df.cache.Get(key); ok {
		return p, nil
	}

	p, err := compilePlan(fields)
	if err != nil {
		return nil, err
	}
	df.cache.Set(key, p)
	return p, nil
}

// ValidateFilter checks a filter and every nested relation scope without
// touching a store: collections are named, relation kinds are known and all
// field and exclude paths are well formed.
func ValidateFilter(f *Filter) error {
	return validateFilter(f, "")
}

func validateFilter(f *Filter, at string) error {
	if f == nil {
		return nil
	}
	if f.Collection == "" && at == "" {
		return ErrEmptyCollection
	}
	if _, err := compilePlan(f.Fields); err != nil {
		return prefixErr(at, err)
	}
	for _, p := range f.Exclude {
		if err := docpath.Validate(p); err != nil {
			return prefixErr(at, err)
		}
	}

	for _, inc := range f.Include {
		name := inc.Field
		if at != "" {
			name = at + "." + inc.Field
		}
		if err := validateRelation(inc.Relation, name); err != nil {
			return err
		}
	}
	return nil
}

func validateRelation(rel *Relation, at string) error {
	if rel == nil {
		return fmt.Errorf("include '%s': relation is required", at)
	}
	switch rel.Kind {
	case RelBelongsTo, RelHasOne, RelHasMany, RelReferencesMany:
	case RelHasAndBelongsToMany:
		if rel.Through == "" || rel.RelationKey == "" {
			return fmt.Errorf("include '%s': through and relationKey are required", at)
		}
		if err := validateFilter(rel.ThroughScope, at); err != nil {
			return err
		}
	default:
		return fmt.Errorf("include '%s': unknown relation '%s'", at, rel.Kind)
	}

	if rel.Collection == "" {
		return fmt.Errorf("include '%s': %w", at, ErrEmptyCollection)
	}
	if rel.ForeignKey == "" {
		return fmt.Errorf("include '%s': foreignKey is required", at)
	}
	return validateFilter(rel.Scope, at)
}

func prefixErr(at string, err error) error {
	if at == "" {
		return err
	}
	return fmt.Errorf("include '%s': %w", at, err)
}
