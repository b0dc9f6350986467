package core

import "strings"

const (
	defaultIDField       = "_id"
	defaultIDSuffix      = "Id"
	defaultPlanCacheSize = 1000
)

// Config holds the engine settings.
type Config struct {
	// IDField is the canonical identifier field. Defaults to "_id".
	IDField string `mapstructure:"id_field" json:"id_field" yaml:"id_field"`

	// IDSuffix marks identifier-shaped keys ("ownerId") that are never
	// date-coerced. Defaults to "Id".
	IDSuffix string `mapstructure:"id_suffix" json:"id_suffix" yaml:"id_suffix"`

	// SkipDateKeys lists further keys that are never date-coerced.
	// Defaults to ["id"].
	SkipDateKeys []string `mapstructure:"skip_date_keys" json:"skip_date_keys" yaml:"skip_date_keys"`

	// DisableDateNormalize sends predicates to the store untouched.
	DisableDateNormalize bool `mapstructure:"disable_date_normalize" json:"disable_date_normalize" yaml:"disable_date_normalize"`

	// MaxDepth limits include nesting. Zero means unlimited.
	MaxDepth int `mapstructure:"max_depth" json:"max_depth" yaml:"max_depth"`

	// Parallel is the number of concurrent relation sub-queries run across
	// sibling instances of one include entry. Values below two resolve
	// strictly in order.
	Parallel int `mapstructure:"parallel" json:"parallel" yaml:"parallel"`

	// PlanCacheSize is the number of compiled field plans kept in memory.
	PlanCacheSize int `mapstructure:"plan_cache_size" json:"plan_cache_size" yaml:"plan_cache_size"`

	// DisablePlanCache compiles field plans on every call.
	DisablePlanCache bool `mapstructure:"disable_plan_cache" json:"disable_plan_cache" yaml:"disable_plan_cache"`
}

func (c *Config) setDefaults() {
	if c.IDField == "" {
		c.IDField = defaultIDField
	}
	if c.IDSuffix == "" {
		c.IDSuffix = defaultIDSuffix
	}
	if c.SkipDateKeys == nil {
		c.SkipDateKeys = []string{"id"}
	}
	if c.PlanCacheSize <= 0 {
		c.PlanCacheSize = defaultPlanCacheSize
	}
}

// isIDKey reports whether key holds identifiers rather than dates.
func (c *Config) isIDKey(key string) bool {
	if key == c.IDField || strings.HasSuffix(key, c.IDSuffix) {
		return true
	}
	for _, k := range c.SkipDateKeys {
		if k == key {
			return true
		}
	}
	return false
}
