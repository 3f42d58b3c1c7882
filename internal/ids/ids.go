// Package ids generates field-array item keys.
//
// Keys must be unique for the life of the process, not merely unlikely to
// collide: a duplicate key would make two items share one index-cache slot.
// Each Generator therefore combines a random UUID prefix with a strictly
// increasing counter.
package ids

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string keys. The zero value is not usable; use New.
type Generator struct {
	prefix string
	n      atomic.Uint64
}

// New returns a Generator with a fresh random prefix.
func New() *Generator {
	return &Generator{prefix: uuid.NewString()[:8]}
}

// Next returns the next key.
func (g *Generator) Next() string {
	return g.prefix + "-" + strconv.FormatUint(g.n.Add(1), 36)
}

var shared = New()

// Next returns a key from the process-wide generator.
func Next() string { return shared.Next() }
