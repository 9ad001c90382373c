package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/kindfund/kindfund/internal/auth"
	"github.com/kindfund/kindfund/internal/clock"
	"github.com/kindfund/kindfund/internal/model"
)

// Quick filter windows.
const (
	EndingSoonWindow    = 7 * 24 * time.Hour
	NewlyLaunchedWindow = 30 * 24 * time.Hour
	NearlyFundedMin     = 70.0
	NearlyFundedMax     = 100.0
)

// Op is a comparison operator in a condition.
type Op string

const (
	OpEq  Op = "="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpIn  Op = "IN"
)

// Cond is a single predicate. Value is one of string, int64, float64,
// time.Time, []int64, or []string. A plan's conditions are ANDed.
type Cond struct {
	Field Field
	Op    Op
	Value any
}

// Scope selects which campaigns a query may see.
type Scope int

const (
	// ScopePublic limits results to publicly visible states.
	ScopePublic Scope = iota
	// ScopeOwner limits results to the actor's own campaigns in any state.
	ScopeOwner
)

// Request is one discovery query before translation.
type Request struct {
	Spec      Spec
	Sort      string
	Direction string
	Page      int
	PageSize  int
	Actor     auth.Actor
	Scope     Scope
}

// Plan is the translated query. Index and store descriptors are both
// rendered from Conds, Text and Sort.
type Plan struct {
	// Empty means the query is known to match nothing and no backend
	// should be consulted.
	Empty bool

	Conds    []Cond
	Text     *TextFilter
	Sort     []SortKey
	Page     int
	PageSize int
	OwnerID  int64
}

// BookmarkLookup resolves the campaigns a user has bookmarked.
type BookmarkLookup interface {
	BookmarkedCampaignIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Translator converts requests into plans.
type Translator struct {
	bookmarks BookmarkLookup
	clock     clock.Clock
}

// NewTranslator creates a Translator. A nil clock uses the system clock.
func NewTranslator(bookmarks BookmarkLookup, clk clock.Clock) *Translator {
	if clk == nil {
		clk = clock.System()
	}
	return &Translator{bookmarks: bookmarks, clock: clk}
}

// Translate builds the plan for a request.
func (t *Translator) Translate(ctx context.Context, req Request) (Plan, error) {
	now := t.clock.Now()
	plan := Plan{
		Page:     req.Page,
		PageSize: req.PageSize,
		Text:     req.Spec.Text(),
	}

	switch req.Scope {
	case ScopeOwner:
		if !req.Actor.Authenticated() {
			plan.Empty = true
			return plan, nil
		}
		plan.OwnerID = req.Actor.UserID
		plan.Conds = append(plan.Conds, Cond{Field: FieldUserID, Op: OpEq, Value: req.Actor.UserID})
	default:
		plan.Conds = append(plan.Conds, Cond{Field: FieldStatus, Op: OpIn, Value: statusStrings(model.PublicStatuses)})
	}

	quick, hasQuick := req.Spec.Quick()
	for _, f := range req.Spec.Filters {
		switch f := f.(type) {
		case StatusFilter:
			plan.Conds = append(plan.Conds, Cond{Field: FieldStatus, Op: OpEq, Value: string(f.Status)})
		case AttributeFilter:
			plan.Conds = append(plan.Conds, Cond{Field: f.Field, Op: OpEq, Value: f.Value})
		case RangeFilter:
			plan.Conds = append(plan.Conds, rangeConds(f)...)
		}
	}

	if hasQuick {
		conds, err := t.quickConds(ctx, quick, req.Actor, now)
		if err != nil {
			return Plan{}, err
		}
		if conds == nil {
			plan.Empty = true
			return plan, nil
		}
		plan.Conds = append(plan.Conds, conds...)
	}

	plan.Sort = ResolveSort(req.Sort, req.Direction)
	if hasQuick && quick == QuickPopular {
		plan.Sort = []SortKey{{Field: FieldDonationCount, Desc: true}}
	}

	return plan, nil
}

// quickConds returns the conditions for a preset. A nil result with no
// error means the preset matches nothing.
func (t *Translator) quickConds(ctx context.Context, tag QuickTag, actor auth.Actor, now time.Time) ([]Cond, error) {
	active := Cond{Field: FieldStatus, Op: OpEq, Value: string(model.CampaignStatusActive)}

	switch tag {
	case QuickActiveOnly:
		return []Cond{
			active,
			{Field: FieldStartDate, Op: OpLte, Value: now},
			{Field: FieldEndDate, Op: OpGt, Value: now},
		}, nil
	case QuickEndingSoon:
		return []Cond{
			active,
			{Field: FieldEndDate, Op: OpGt, Value: now},
			{Field: FieldEndDate, Op: OpLte, Value: now.Add(EndingSoonWindow)},
		}, nil
	case QuickNewlyLaunched:
		return []Cond{
			{Field: FieldCreatedAt, Op: OpGte, Value: now.Add(-NewlyLaunchedWindow)},
			active,
		}, nil
	case QuickNearlyFunded:
		return []Cond{
			active,
			{Field: FieldGoalPercentage, Op: OpGte, Value: NearlyFundedMin},
			{Field: FieldGoalPercentage, Op: OpLt, Value: NearlyFundedMax},
		}, nil
	case QuickPopular:
		return []Cond{active}, nil
	case QuickFavorites:
		if !actor.Authenticated() || t.bookmarks == nil {
			return nil, nil
		}
		ids, err := t.bookmarks.BookmarkedCampaignIDs(ctx, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("lookup bookmarks: %w", err)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		return []Cond{{Field: FieldID, Op: OpIn, Value: ids}}, nil
	}
	return []Cond{}, nil
}

// rangeConds expresses a calendar-day comparison as half-open timestamp bounds.
func rangeConds(f RangeFilter) []Cond {
	day := startOfDay(f.Day)
	next := day.AddDate(0, 0, 1)

	switch f.Op {
	case RangeBefore:
		return []Cond{{Field: f.Field, Op: OpLt, Value: day}}
	case RangeAfter:
		return []Cond{{Field: f.Field, Op: OpGte, Value: next}}
	case RangeFrom:
		return []Cond{{Field: f.Field, Op: OpGte, Value: day}}
	case RangeTo:
		return []Cond{{Field: f.Field, Op: OpLt, Value: next}}
	default:
		return []Cond{
			{Field: f.Field, Op: OpGte, Value: day},
			{Field: f.Field, Op: OpLt, Value: next},
		}
	}
}

func statusStrings(statuses []model.CampaignStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
