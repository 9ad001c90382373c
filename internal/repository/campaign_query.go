package repository

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kindfund/kindfund/internal/filter"
	"github.com/kindfund/kindfund/internal/model"
)

// goalPercentageExpr prefers the stored percentage and derives it otherwise.
const goalPercentageExpr = `COALESCE(c.goal_percentage, CASE WHEN c.goal_amount > 0 THEN LEAST(100, c.current_amount / c.goal_amount * 100) ELSE 0 END)::float8`

const campaignSelect = `
	SELECT c.id, c.title, c.description, c.status, c.organization_id, COALESCE(o.name, ''),
		c.user_id, c.category_id, COALESCE(cat.name, ''),
		c.goal_amount::float8, c.current_amount::float8, c.goal_percentage::float8,
		c.donation_count, c.is_featured, c.start_date, c.end_date,
		c.created_at, c.updated_at, c.deleted_at
	FROM campaigns c
	LEFT JOIN organizations o ON o.id = c.organization_id
	LEFT JOIN categories cat ON cat.id = c.category_id`

const campaignCount = `
	SELECT COUNT(*)
	FROM campaigns c`

var columns = map[filter.Field]string{
	filter.FieldID:             "c.id",
	filter.FieldStatus:         "c.status",
	filter.FieldOrganizationID: "c.organization_id",
	filter.FieldCategoryID:     "c.category_id",
	filter.FieldUserID:         "c.user_id",
	filter.FieldTitle:          "c.title",
	filter.FieldGoalAmount:     "c.goal_amount",
	filter.FieldCurrentAmount:  "c.current_amount",
	filter.FieldGoalPercentage: goalPercentageExpr,
	filter.FieldDonationCount:  "c.donation_count",
	filter.FieldIsFeatured:     "c.is_featured",
	filter.FieldStartDate:      "c.start_date",
	filter.FieldEndDate:        "c.end_date",
	filter.FieldCreatedAt:      "c.created_at",
	filter.FieldUpdatedAt:      "c.updated_at",
}

// CampaignQuery selects campaigns directly from the primary store.
type CampaignQuery struct {
	Conds []filter.Cond
	Text  *filter.TextFilter
	Sort  []filter.SortKey

	// WithTrashed includes soft-deleted campaigns.
	WithTrashed bool

	// UnindexedSince restricts results to campaigns the search index does
	// not reflect yet: unindexed states, rows updated at or after this
	// instant, and (with WithTrashed) deleted rows.
	UnindexedSince *time.Time

	// Limit 0 means no limit.
	Limit  int
	Offset int
}

// QueryFromPlan builds a store query from a translated plan.
func QueryFromPlan(plan filter.Plan) CampaignQuery {
	return CampaignQuery{
		Conds: plan.Conds,
		Text:  plan.Text,
		Sort:  plan.Sort,
	}
}

// maxOffset bounds Offset so page arithmetic cannot overflow. Pages past it
// are empty.
const maxOffset = math.MaxInt32

// Paginate sets Limit and Offset for a 1-based page.
func (q CampaignQuery) Paginate(page, pageSize int) CampaignQuery {
	if page < 1 {
		page = 1
	}
	q.Limit = pageSize
	if pageSize > 0 && page-1 > maxOffset/pageSize {
		q.Offset = maxOffset
		return q
	}
	q.Offset = (page - 1) * pageSize
	return q
}

// sqlBuilder accumulates WHERE clauses and positional arguments.
type sqlBuilder struct {
	clauses []string
	args    []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) add(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *sqlBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// buildWhere renders the query's predicates.
func buildWhere(q CampaignQuery) (string, []any, error) {
	b := &sqlBuilder{}

	if !q.WithTrashed {
		b.add("c.deleted_at IS NULL")
	}

	for _, c := range q.Conds {
		if err := b.addCond(c); err != nil {
			return "", nil, err
		}
	}

	if q.Text != nil && q.Text.Term != "" {
		terms := []string{q.Text.Term}
		if !q.Text.Phrase {
			terms = strings.Fields(q.Text.Term)
		}
		for _, term := range terms {
			p := b.arg(likePattern(term))
			b.add(fmt.Sprintf("(c.title ILIKE %s OR c.description ILIKE %s)", p, p))
		}
	}

	if q.UnindexedSince != nil {
		statuses := make([]string, len(model.UnindexedStatuses))
		for i, s := range model.UnindexedStatuses {
			statuses[i] = string(s)
		}
		clause := fmt.Sprintf("c.status = ANY(%s) OR c.updated_at >= %s",
			b.arg(pq.Array(statuses)), b.arg(*q.UnindexedSince))
		if q.WithTrashed {
			clause += " OR c.deleted_at IS NOT NULL"
		}
		b.add("(" + clause + ")")
	}

	return b.where(), b.args, nil
}

func (b *sqlBuilder) addCond(c filter.Cond) error {
	col, ok := columns[c.Field]
	if !ok {
		return fmt.Errorf("unsupported filter field %q", c.Field)
	}

	if c.Op == filter.OpIn {
		switch v := c.Value.(type) {
		case []int64:
			b.add(fmt.Sprintf("%s = ANY(%s)", col, b.arg(pq.Array(v))))
		case []string:
			b.add(fmt.Sprintf("%s = ANY(%s)", col, b.arg(pq.Array(v))))
		default:
			return fmt.Errorf("unsupported IN value %T for %q", c.Value, c.Field)
		}
		return nil
	}

	switch c.Op {
	case filter.OpEq, filter.OpLt, filter.OpLte, filter.OpGt, filter.OpGte:
	default:
		return fmt.Errorf("unsupported operator %q", c.Op)
	}
	b.add(fmt.Sprintf("%s %s %s", col, c.Op, b.arg(c.Value)))
	return nil
}

// buildOrder renders ORDER BY with id as the final tiebreaker.
func buildOrder(keys []filter.SortKey) string {
	if len(keys) == 0 {
		keys = filter.DefaultSort
	}
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		col, ok := columns[k.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s NULLS LAST", col, dir))
	}
	parts = append(parts, "c.id DESC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

// likePattern escapes LIKE metacharacters and wraps the term in wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
