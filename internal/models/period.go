package models

// Period is an academic term label such as "2024-1".
type Period string

// Periods lists the accepted academic terms in chronological order.
var Periods = []Period{
	"2022-1", "2022-2",
	"2023-1", "2023-2",
	"2024-1", "2024-2",
	"2025-1", "2025-2",
	"2026-1", "2026-2",
}

var periodIndex = func() map[Period]int {
	idx := make(map[Period]int, len(Periods))
	for i, p := range Periods {
		idx[p] = i
	}
	return idx
}()

// Valid reports whether p is one of the accepted terms.
func (p Period) Valid() bool {
	_, ok := periodIndex[p]
	return ok
}

// Before reports whether p is chronologically earlier than other.
// Unknown labels sort after known ones.
func (p Period) Before(other Period) bool {
	i, ok := periodIndex[p]
	if !ok {
		i = len(Periods)
	}
	j, ok := periodIndex[other]
	if !ok {
		j = len(Periods)
	}
	if i == j {
		return p < other
	}
	return i < j
}
