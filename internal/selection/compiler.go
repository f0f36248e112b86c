package selection

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/selq/internal/queryir"
)

// DefaultCacheSize is the number of compiled selections a Compiler keeps
// when no size is given.
const DefaultCacheSize = 128

// Compiler memoizes parse results by expanded query text. Interpolation
// always runs, so different bindings that expand to the same text share
// one entry and bindings never leak between entries.
type Compiler struct {
	cache *lru.Cache[string, queryir.Selection]
}

// NewCompiler creates a compiler caching up to size selections.
// size <= 0 selects DefaultCacheSize.
func NewCompiler(size int) (*Compiler, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, queryir.Selection](size)
	if err != nil {
		return nil, fmt.Errorf("create selection cache: %w", err)
	}
	return &Compiler{cache: cache}, nil
}

// Compile behaves like the package-level Compile. Cached trees are cloned
// on the way out, so callers own what they receive.
func (c *Compiler) Compile(source string, mode Mode, b Bindings) (queryir.Selection, error) {
	expanded, err := Expand(source, mode, b)
	if err != nil {
		return queryir.Selection{}, err
	}

	if sel, ok := c.cache.Get(expanded); ok {
		return sel.Clone(), nil
	}

	sel, err := parse(source, expanded, mode)
	if err != nil {
		return queryir.Selection{}, err
	}
	c.cache.Add(expanded, sel.Clone())
	return sel, nil
}

// Len reports the number of cached selections.
func (c *Compiler) Len() int {
	return c.cache.Len()
}

// Purge drops every cached selection.
func (c *Compiler) Purge() {
	c.cache.Purge()
}
