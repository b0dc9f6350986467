package conf

import "github.com/dosco/docfind/core"

// Overrides are the per-call changes allowed on a saved filter.
type Overrides struct {
	Where map[string]any `json:"where,omitempty" yaml:"where,omitempty"`
	Skip  *int64         `json:"skip,omitempty" yaml:"skip,omitempty"`
	Limit *int64         `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Apply returns a copy of f with o laid over it. Keys of o.Where replace
// the same keys of the saved where clause.
func Apply(f *core.Filter, o Overrides) *core.Filter {
	nf := *f

	if len(o.Where) != 0 {
		where := make(map[string]any, len(f.Where)+len(o.Where))
		for k, v := range f.Where {
			where[k] = v
		}
		for k, v := range o.Where {
			where[k] = v
		}
		nf.Where = where
	}
	if o.Skip != nil {
		nf.Skip = *o.Skip
	}
	if o.Limit != nil {
		nf.Limit = *o.Limit
	}
	return &nf
}
