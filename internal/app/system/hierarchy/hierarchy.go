// Package hierarchy holds the fixed level order of the organizational
// tree and the tables driven off it: which location fields each level
// requires, how locations are matched for jurisdiction, and which levels
// a given level may act upon. Everything that varies by level iterates
// these tables; there is no per-level branching anywhere else.
package hierarchy

import (
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/sanghsetu/sanghsetu/internal/domain/models"
)

// Order is the hierarchy from root to leaf. A unit's parent is always
// the previous entry, which also makes the unit graph acyclic.
var Order = []models.Level{
	models.LevelCountry,
	models.LevelState,
	models.LevelDistrict,
	models.LevelCity,
	models.LevelArea,
}

// locationField pairs a location key with its accessors so table walks
// never hard-code field names.
type locationField struct {
	Key string
	Get func(models.Location) string
	Set func(*models.Location, string)
}

// fields is ordered root-first; the first Depth(level)+1 entries are the
// required fields for that level.
var fields = []locationField{
	{"country", func(l models.Location) string { return l.Country }, func(l *models.Location, v string) { l.Country = v }},
	{"state", func(l models.Location) string { return l.State }, func(l *models.Location, v string) { l.State = v }},
	{"district", func(l models.Location) string { return l.District }, func(l *models.Location, v string) { l.District = v }},
	{"city", func(l models.Location) string { return l.City }, func(l *models.Location, v string) { l.City = v }},
	{"area", func(l models.Location) string { return l.Area }, func(l *models.Location, v string) { l.Area = v }},
}

// Valid reports whether l is a real hierarchy level (not the sentinel).
func Valid(l models.Level) bool {
	return Depth(l) >= 0
}

// Depth returns the zero-based position of l in Order, or -1.
func Depth(l models.Level) int {
	for i, lv := range Order {
		if lv == l {
			return i
		}
	}
	return -1
}

// Parent returns the level one step up, and false for country or
// unknown levels.
func Parent(l models.Level) (models.Level, bool) {
	d := Depth(l)
	if d <= 0 {
		return "", false
	}
	return Order[d-1], true
}

// Child returns the level one step down, and false for area or unknown
// levels.
func Child(l models.Level) (models.Level, bool) {
	d := Depth(l)
	if d < 0 || d == len(Order)-1 {
		return "", false
	}
	return Order[d+1], true
}

// RequiredKeys returns the location keys a unit at level must populate,
// root-first. Unknown levels return nil.
func RequiredKeys(level models.Level) []string {
	d := Depth(level)
	if d < 0 {
		return nil
	}
	keys := make([]string, 0, d+1)
	for _, f := range fields[:d+1] {
		keys = append(keys, f.Key)
	}
	return keys
}

// MissingKeys returns the required keys of level that are empty in loc.
func MissingKeys(loc models.Location, level models.Level) []string {
	d := Depth(level)
	if d < 0 {
		return nil
	}
	var missing []string
	for _, f := range fields[:d+1] {
		if f.Get(loc) == "" {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// Fold returns loc with every field case/diacritic-folded, the form the
// *_ci mirrors store and all matching compares.
func Fold(loc models.Location) models.Location {
	var out models.Location
	for _, f := range fields {
		f.Set(&out, text.Fold(f.Get(loc)))
	}
	return out
}

// Matches reports whether a and b agree on every location field at level
// and all levels above it. Comparison is folded; unknown levels never
// match.
func Matches(a, b models.Location, level models.Level) bool {
	d := Depth(level)
	if d < 0 {
		return false
	}
	af, bf := Fold(a), Fold(b)
	for _, f := range fields[:d+1] {
		if f.Get(af) != f.Get(bf) {
			return false
		}
	}
	return true
}

// actsOn is the partial order of authority: the set of levels each level
// may act upon below itself. Same-level authority is not in the table —
// it additionally requires an exact location match at that level.
var actsOn = map[models.Level]map[models.Level]bool{
	models.LevelCountry:  {models.LevelState: true, models.LevelDistrict: true, models.LevelCity: true},
	models.LevelState:    {models.LevelDistrict: true, models.LevelCity: true},
	models.LevelDistrict: {models.LevelCity: true},
}

// CanActOn reports whether a unit at actor level has transitive
// authority over a unit or application at target level. Higher levels
// act on the levels beneath them, never the reverse and never sideways;
// same-level pairs return false here and callers combine this with the
// exact-match rule.
func CanActOn(actor, target models.Level) bool {
	return actsOn[actor][target]
}
