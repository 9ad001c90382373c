package filter

import "strings"

// SortKey is one ordering term.
type SortKey struct {
	Field Field
	Desc  bool
}

// DefaultSort orders newest first.
var DefaultSort = []SortKey{{Field: FieldCreatedAt, Desc: true}}

var sortableFields = map[Field]bool{
	FieldTitle:          true,
	FieldCreatedAt:      true,
	FieldUpdatedAt:      true,
	FieldGoalAmount:     true,
	FieldCurrentAmount:  true,
	FieldStartDate:      true,
	FieldEndDate:        true,
	FieldDonationCount:  true,
	FieldGoalPercentage: true,
}

// ResolveSort maps a requested field and direction onto the allow-list.
// is_featured expands to featured-first then newest; unknown fields fall
// back to DefaultSort. Direction defaults to descending.
func ResolveSort(field, direction string) []SortKey {
	f := Field(strings.ToLower(strings.TrimSpace(field)))
	desc := !strings.EqualFold(strings.TrimSpace(direction), "asc")

	if f == FieldIsFeatured {
		return []SortKey{
			{Field: FieldIsFeatured, Desc: true},
			{Field: FieldCreatedAt, Desc: true},
		}
	}
	if !sortableFields[f] {
		return append([]SortKey(nil), DefaultSort...)
	}
	return []SortKey{{Field: f, Desc: desc}}
}

// SingleKey returns the sort key when exactly one applies.
func SingleKey(keys []SortKey) (SortKey, bool) {
	if len(keys) != 1 {
		return SortKey{}, false
	}
	return keys[0], true
}
