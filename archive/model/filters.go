package model

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Filters narrows which items appear on the surface and in search results.
// Empty or absent fields mean "no constraint", never "match nothing".
type Filters struct {
	Languages   []string `json:"languages,omitempty"`
	Types       []string `json:"types,omitempty"`
	Collections []string `json:"collections,omitempty"`
	Periods     []string `json:"periods,omitempty"`
	YearMin     int      `json:"yearMin,omitempty"`
	YearMax     int      `json:"yearMax,omitempty"`
}

// IsZero reports whether no constraint is set.
func (f Filters) IsZero() bool {
	return len(f.Languages) == 0 && len(f.Types) == 0 && len(f.Collections) == 0 &&
		len(f.Periods) == 0 && f.YearMin == 0 && f.YearMax == 0
}

// Canonical returns a stable serialization of the filter set: array fields
// are sorted, absent fields are omitted. Two semantically identical filter
// sets produce the same canonical form regardless of construction order.
// This is the single source of truth for fingerprint equality; a divergence
// here causes redundant fetches rather than wrong results, but it is still a
// defect covered by tests.
func (f Filters) Canonical() string {
	var b strings.Builder
	writeList(&b, "lang", f.Languages)
	writeList(&b, "type", f.Types)
	writeList(&b, "coll", f.Collections)
	writeList(&b, "period", f.Periods)
	if f.YearMin != 0 {
		b.WriteString("ymin=")
		b.WriteString(strconv.Itoa(f.YearMin))
		b.WriteByte(';')
	}
	if f.YearMax != 0 {
		b.WriteString("ymax=")
		b.WriteString(strconv.Itoa(f.YearMax))
		b.WriteByte(';')
	}
	return b.String()
}

// Fingerprint returns a short hex digest of the canonical serialization,
// suitable for embedding in cache keys.
func (f Filters) Fingerprint() string {
	return strconv.FormatUint(xxhash.Sum64String(f.Canonical()), 16)
}

// Match reports whether the item satisfies the filter set. Used for
// client-side filtering when the upstream cannot filter natively.
func (f Filters) Match(it Item) bool {
	if !matchOneOf(it.Language, f.Languages) {
		return false
	}
	if !matchOneOf(it.Type, f.Types) {
		return false
	}
	if !matchOneOf(it.Collection, f.Collections) {
		return false
	}
	if f.YearMin != 0 && (it.Year == 0 || it.Year < f.YearMin) {
		return false
	}
	if f.YearMax != 0 && (it.Year == 0 || it.Year > f.YearMax) {
		return false
	}
	return true
}

func matchOneOf(val string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if strings.EqualFold(val, w) {
			return true
		}
	}
	return false
}

func writeList(b *strings.Builder, name string, vals []string) {
	if len(vals) == 0 {
		return
	}
	sorted := make([]string, len(vals))
	copy(sorted, vals)
	sort.Strings(sorted)

	b.WriteString(name)
	b.WriteByte('=')
	for i, v := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v)
	}
	b.WriteByte(';')
}
