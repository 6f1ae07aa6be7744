package filter

import (
	"regexp"
	"sync"
)

// patternCache memoizes compiled LIKE patterns guarded by a RWMutex —
// the filter matcher runs on the container's single logical executor
// (spec §5) but is exercised from tests concurrently, so the cache
// itself stays safe for concurrent use independent of that guarantee.
type patternCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{cache: make(map[string]*regexp.Regexp)}
}

func (c *patternCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.cache[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	compiled, err := compileLike(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[pattern] = compiled
	c.mu.Unlock()
	return compiled, nil
}
