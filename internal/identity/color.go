package identity

import "sync"

// DefaultPalette is the fixed set of avatar gradient buckets
var DefaultPalette = []string{
	"bg-gradient-to-b from-blue-400 to-blue-500",
	"bg-gradient-to-b from-pink-400 to-pink-500",
	"bg-gradient-to-b from-green-500 to-green-600",
	"bg-gradient-to-b from-purple-400 via-purple-500 to-purple-600",
	"bg-gradient-to-b from-yellow-300 to-yellow-400",
	"bg-gradient-to-b from-orange-300 to-orange-400",
	"bg-gradient-to-b from-teal-400 to-teal-500",
}

// ColorAssigner maps identifiers to palette buckets in first-seen order.
//
// A bucket assigned to an identifier never changes while the identifier stays
// memoized. With limit == 0 nothing is ever evicted, so assignments are stable for
// the lifetime of the process and memory grows with the number of distinct ids.
// With limit > 0 the oldest identifier is evicted once the limit is exceeded and
// may receive a different bucket if it is seen again.
type ColorAssigner struct {
	mu      sync.Mutex
	palette []string
	cursor  int
	limit   int
	memo    map[string]string
	order   []string // first-seen order, only kept when limit > 0
}

// NewColorAssigner creates an assigner over palette. An empty palette uses DefaultPalette.
func NewColorAssigner(palette []string, limit int) *ColorAssigner {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	p := make([]string, len(palette))
	copy(p, palette)

	if limit < 0 {
		limit = 0
	}

	return &ColorAssigner{
		palette: p,
		limit:   limit,
		memo:    make(map[string]string),
	}
}

// Assign returns the bucket for identifier, assigning the next palette entry on first sight.
// The empty identifier always maps to the first bucket and is not memoized.
func (a *ColorAssigner) Assign(identifier string) string {
	if identifier == "" {
		return a.palette[0]
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if bucket, ok := a.memo[identifier]; ok {
		return bucket
	}

	bucket := a.palette[a.cursor]
	a.cursor = (a.cursor + 1) % len(a.palette)
	a.memo[identifier] = bucket

	if a.limit > 0 {
		a.order = append(a.order, identifier)
		for len(a.order) > a.limit {
			delete(a.memo, a.order[0])
			a.order = a.order[1:]
		}
	}

	return bucket
}

// Len returns the number of memoized identifiers
func (a *ColorAssigner) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.memo)
}

// PaletteSize returns the number of buckets
func (a *ColorAssigner) PaletteSize() int {
	return len(a.palette)
}
