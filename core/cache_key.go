package core

import (
	"github.com/mitchellh/hashstructure/v2"
)

// planKey builds the cache key of a field list. Two lists with the same
// paths and options hash to the same key whatever their literal values.
func planKey(fields []Field) (uint64, error) {
	return hashstructure.Hash(fields, hashstructure.FormatV2, nil)
}
