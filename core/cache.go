package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// planCache keeps compiled field plans so repeated filters skip path
// validation and projection building.
type planCache struct {
	cache *lru.TwoQueueCache[uint64, *plan]
}

// initCache initializes the cache
func (df *DocFind) initCache() (err error) {
	if df.conf.DisablePlanCache {
		return nil
	}
	df.cache.cache, err = lru.New2Q[uint64, *plan](df.conf.PlanCacheSize)
	return
}

// Get returns the plan from the cache
func (c planCache) Get(key uint64) (p *plan, fromCache bool) {
	if c.cache == nil {
		return nil, false
	}
	p, fromCache = c.cache.Get(key)
	return
}

// Set adds the plan to the cache
func (c planCache) Set(key uint64, p *plan) {
	if c.cache == nil {
		return
	}
	c.cache.Add(key, p)
}

// Len returns the number of cached plans
func (c planCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
