package dispatch

import (
	"fmt"
	"sort"
)

// AccessLevel is one privilege tier. Lower numeric levels are more
// privileged. A character's effective level is the first level, scanned
// ascending, whose predicate accepts them.
type AccessLevel struct {
	Label string
	Level int
	Check func(charID uint32) bool
}

// AccessRegistry holds the ordered access levels. "none" (0, never
// matches) and "all" (100, always matches) are the built-in floor and
// ceiling.
type AccessRegistry struct {
	levels []AccessLevel
}

func NewAccessRegistry() *AccessRegistry {
	r := &AccessRegistry{}
	r.levels = []AccessLevel{
		{Label: "none", Level: 0, Check: func(uint32) bool { return false }},
		{Label: "all", Level: 100, Check: func(uint32) bool { return true }},
	}
	return r
}

// Register adds a level. Duplicate labels are a registration error.
func (r *AccessRegistry) Register(label string, level int, check func(charID uint32) bool) error {
	for _, l := range r.levels {
		if l.Label == label {
			return fmt.Errorf("dispatch: access level %q already registered", label)
		}
	}
	r.levels = append(r.levels, AccessLevel{Label: label, Level: level, Check: check})
	sort.SliceStable(r.levels, func(i, j int) bool {
		return r.levels[i].Level < r.levels[j].Level
	})
	return nil
}

// Get looks up a level by label.
func (r *AccessRegistry) Get(label string) (AccessLevel, bool) {
	for _, l := range r.levels {
		if l.Label == label {
			return l, true
		}
	}
	return AccessLevel{}, false
}

// Effective resolves a character's access level: the most privileged level
// whose predicate accepts them. "all" terminates the scan.
func (r *AccessRegistry) Effective(charID uint32) AccessLevel {
	for _, l := range r.levels {
		if l.Check(charID) {
			return l
		}
	}
	// Unreachable while "all" is registered.
	return r.levels[len(r.levels)-1]
}

// HasAccess reports whether the character's effective level is at least as
// privileged as the required label.
func (r *AccessRegistry) HasAccess(charID uint32, required string) bool {
	req, ok := r.Get(required)
	if !ok {
		return false
	}
	return r.Effective(charID).Level <= req.Level
}
