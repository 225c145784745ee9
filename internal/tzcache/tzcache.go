// Package tzcache resolves IANA/Olson timezone names to *time.Location,
// caching lookups so a single conversion (or a to_jmap_all batch over many
// sibling VEVENTs) doesn't repeatedly hit the tzdata loader for the same
// TZID.
package tzcache

import (
	"time"

	"github.com/sonroyaalmerol/jscalical/internal/cache"
)

type Resolver struct {
	c *cache.Cache[string, *time.Location]
}

func New() *Resolver {
	return &Resolver{c: cache.New[string, *time.Location](30 * time.Minute)}
}

// Lookup returns the *time.Location for tzid, or (nil, false) if tzid is
// not a recognized Olson name. An empty tzid resolves to UTC.
func (r *Resolver) Lookup(tzid string) (*time.Location, bool) {
	if tzid == "" || tzid == "UTC" || tzid == "Etc/UTC" || tzid == "GMT" {
		return time.UTC, true
	}
	if loc, ok := r.c.Get(tzid); ok {
		return loc, loc != nil
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		r.c.Set(tzid, nil, time.Now().Add(30*time.Minute))
		return nil, false
	}
	r.c.Set(tzid, loc, time.Now().Add(30*time.Minute))
	return loc, true
}
