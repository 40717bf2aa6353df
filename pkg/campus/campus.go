// Package campus defines the closed set of campus identifiers.
//
// Campuses are plain strings in the data model, not foreign-keyed rows.
// The set is validated at every boundary: past free-text campus names caused
// data fragmentation that required a cleanup migration, so unknown names are
// rejected outright instead of being stored.
package campus

// The four campuses operated by the clinic.
const (
	Main       = "Main Campus"
	THS        = "THS"
	SHS        = "SHS"
	Laboratory = "Laboratory"
)

var all = []string{Main, THS, SHS, Laboratory}

// All returns the full campus set in display order.
func All() []string {
	out := make([]string, len(all))
	copy(out, all)
	return out
}

// Valid reports whether name is a known campus identifier.
func Valid(name string) bool {
	for _, c := range all {
		if c == name {
			return true
		}
	}
	return false
}
