// Package filter normalises raw discovery parameters into typed filters and
// translates them into one condition list that both the search index and the
// primary store render from.
package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kindfund/kindfund/internal/model"
)

// Field is a filterable or sortable campaign attribute.
type Field string

const (
	FieldID             Field = "id"
	FieldStatus         Field = "status"
	FieldOrganizationID Field = "organization_id"
	FieldCategoryID     Field = "category_id"
	FieldUserID         Field = "user_id"
	FieldTitle          Field = "title"
	FieldGoalAmount     Field = "goal_amount"
	FieldCurrentAmount  Field = "current_amount"
	FieldGoalPercentage Field = "goal_percentage"
	FieldDonationCount  Field = "donation_count"
	FieldIsFeatured     Field = "is_featured"
	FieldStartDate      Field = "start_date"
	FieldEndDate        Field = "end_date"
	FieldCreatedAt      Field = "created_at"
	FieldUpdatedAt      Field = "updated_at"
)

// Raw parameter names.
const (
	ParamStatus         = "status"
	ParamOrganizationID = "organization_id"
	ParamCategoryID     = "category_id"
	ParamSearch         = "search"
	ParamQuickFilter    = "filter"
	ParamStartDate      = "start_date"
	ParamEndDate        = "end_date"
	ParamCreatedAt      = "created_at"
)

const dayLayout = "2006-01-02"

// QuickTag names a predefined filter preset.
type QuickTag string

const (
	QuickActiveOnly    QuickTag = "active-only"
	QuickEndingSoon    QuickTag = "ending-soon"
	QuickNewlyLaunched QuickTag = "newly-launched"
	QuickNearlyFunded  QuickTag = "nearly-funded"
	QuickPopular       QuickTag = "popular"
	QuickFavorites     QuickTag = "favorites"
)

// IsValid checks if the tag is a known preset.
func (q QuickTag) IsValid() bool {
	switch q {
	case QuickActiveOnly, QuickEndingSoon, QuickNewlyLaunched, QuickNearlyFunded, QuickPopular, QuickFavorites:
		return true
	}
	return false
}

// RangeOp is a date comparison. Comparisons are made on the calendar day
// of the stored timestamp.
type RangeOp string

const (
	RangeDay    RangeOp = "day"
	RangeBefore RangeOp = "before"
	RangeAfter  RangeOp = "after"
	RangeFrom   RangeOp = "from"
	RangeTo     RangeOp = "to"
)

// rangeOps maps accepted operator spellings. Anything else is an exact-day match.
var rangeOps = map[string]RangeOp{
	"before":          RangeBefore,
	"strictly_before": RangeBefore,
	"after":           RangeAfter,
	"strictly_after":  RangeAfter,
	"gte":             RangeFrom,
	"from":            RangeFrom,
	"lte":             RangeTo,
	"to":              RangeTo,
	"eq":              RangeDay,
	"equals":          RangeDay,
}

// Filter is one validated discovery constraint.
type Filter interface {
	isFilter()
}

// StatusFilter restricts results to one lifecycle state.
type StatusFilter struct {
	Status model.CampaignStatus
}

// AttributeFilter matches an integer foreign key exactly.
type AttributeFilter struct {
	Field Field
	Value int64
}

// TextFilter is a full-text term. Phrase terms must match verbatim.
type TextFilter struct {
	Term   string
	Phrase bool
}

// QuickFilter applies a preset.
type QuickFilter struct {
	Tag QuickTag
}

// RangeFilter compares a date field against a calendar day.
type RangeFilter struct {
	Field Field
	Op    RangeOp
	Day   time.Time
}

func (StatusFilter) isFilter()    {}
func (AttributeFilter) isFilter() {}
func (TextFilter) isFilter()      {}
func (QuickFilter) isFilter()     {}
func (RangeFilter) isFilter()     {}

// Spec is the normalised set of filters for one query.
type Spec struct {
	Filters []Filter
}

// Quick returns the quick filter preset, if any.
func (s Spec) Quick() (QuickTag, bool) {
	for _, f := range s.Filters {
		if q, ok := f.(QuickFilter); ok {
			return q.Tag, true
		}
	}
	return "", false
}

// Text returns the text filter, if any.
func (s Spec) Text() *TextFilter {
	for _, f := range s.Filters {
		if t, ok := f.(TextFilter); ok {
			return &t
		}
	}
	return nil
}

// Parse validates raw parameters into a Spec.
// Unknown keys are ignored and malformed values are treated as absent.
func Parse(raw map[string]any) Spec {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var spec Spec
	for _, key := range keys {
		value := raw[key]
		switch key {
		case ParamStatus:
			if s, ok := asString(value); ok {
				status := model.CampaignStatus(strings.ToLower(s))
				if status.IsValid() {
					spec.Filters = append(spec.Filters, StatusFilter{Status: status})
				}
			}
		case ParamOrganizationID, ParamCategoryID:
			if id, ok := asID(value); ok {
				spec.Filters = append(spec.Filters, AttributeFilter{Field: Field(key), Value: id})
			}
		case ParamSearch:
			if t, ok := parseText(value); ok {
				spec.Filters = append(spec.Filters, t)
			}
		case ParamQuickFilter:
			if s, ok := asString(value); ok {
				tag := QuickTag(strings.ToLower(s))
				if tag.IsValid() {
					spec.Filters = append(spec.Filters, QuickFilter{Tag: tag})
				}
			}
		case ParamStartDate, ParamEndDate, ParamCreatedAt:
			spec.Filters = append(spec.Filters, parseRange(Field(key), value)...)
		}
	}
	return spec
}

func parseText(value any) (TextFilter, bool) {
	s, ok := asString(value)
	if !ok {
		return TextFilter{}, false
	}
	if len(s) >= 2 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return TextFilter{}, false
		}
		return TextFilter{Term: inner, Phrase: true}, true
	}
	return TextFilter{Term: s}, true
}

func parseRange(field Field, value any) []Filter {
	ops := asOperatorMap(value)
	if ops == nil {
		day, ok := asDay(value)
		if !ok {
			return nil
		}
		return []Filter{RangeFilter{Field: field, Op: RangeDay, Day: day}}
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	filters := make([]Filter, 0, len(names))
	for _, name := range names {
		day, ok := asDay(ops[name])
		if !ok {
			continue
		}
		op, known := rangeOps[strings.ToLower(name)]
		if !known {
			op = RangeDay
		}
		filters = append(filters, RangeFilter{Field: field, Op: op, Day: day})
	}
	return filters
}

func asOperatorMap(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	}
	return nil
}

func asString(value any) (string, bool) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []string:
		if len(v) == 0 {
			return "", false
		}
		s = v[0]
	case json.Number:
		s = v.String()
	case fmt.Stringer:
		s = v.String()
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func asID(value any) (int64, bool) {
	var id int64
	switch v := value.(type) {
	case int:
		id = int64(v)
	case int64:
		id = v
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		id = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	default:
		s, ok := asString(value)
		if !ok {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	}
	return id, id > 0
}

func asDay(value any) (time.Time, bool) {
	s, ok := asString(value)
	if !ok {
		return time.Time{}, false
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return startOfDay(t), true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
