package discovery

import (
	"sort"
	"strings"
	"time"

	"github.com/kindfund/kindfund/internal/filter"
	"github.com/kindfund/kindfund/internal/model"
)

// Merge combines index results with primary-store fallback records.
// Resolved records come first, in federatedIDs order; fallback records whose
// id the index already returned are dropped. The result holds each id once.
// When exactly one sort key applies, the whole sequence is re-sorted by it.
func Merge(federatedIDs []int64, resolved, fallback []*model.Campaign, keys []filter.SortKey) []*model.Campaign {
	federated := make(map[int64]struct{}, len(federatedIDs))
	for _, id := range federatedIDs {
		federated[id] = struct{}{}
	}

	merged := make([]*model.Campaign, 0, len(federatedIDs)+len(fallback))
	merged = append(merged, orderByIDs(resolved, federatedIDs)...)
	for _, c := range fallback {
		if _, ok := federated[c.ID]; ok {
			continue
		}
		merged = append(merged, c)
	}

	merged = dedupe(merged)

	if key, ok := filter.SingleKey(keys); ok {
		sortCampaigns(merged, key)
	}
	return merged
}

// Paginate slices a 1-based page out of items.
func Paginate(items []*model.Campaign, page, pageSize int) *model.Page {
	p := model.EmptyPage(page, pageSize)
	p.Total = len(items)

	if page < 1 || pageSize < 1 || page-1 >= (len(items)+pageSize-1)/pageSize {
		return p
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, len(items))
	p.Items = append(p.Items, items[start:end]...)
	return p
}

// orderByIDs arranges items in ids order, dropping ids with no record.
func orderByIDs(items []*model.Campaign, ids []int64) []*model.Campaign {
	byID := make(map[int64]*model.Campaign, len(items))
	for _, c := range items {
		if c != nil {
			byID[c.ID] = c
		}
	}
	out := make([]*model.Campaign, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func dedupe(items []*model.Campaign) []*model.Campaign {
	seen := make(map[int64]struct{}, len(items))
	out := items[:0]
	for _, c := range items {
		if c == nil {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// sortCampaigns stable-sorts by one key. Missing values sort last in
// either direction.
func sortCampaigns(items []*model.Campaign, key filter.SortKey) {
	sort.SliceStable(items, func(i, j int) bool {
		a, aok := sortValue(items[i], key.Field)
		b, bok := sortValue(items[j], key.Field)
		switch {
		case !aok && !bok:
			return false
		case !aok:
			return false
		case !bok:
			return true
		}
		c := compare(a, b)
		if key.Desc {
			return c > 0
		}
		return c < 0
	})
}

// sortValue returns the comparable value of a field, and false when unset.
func sortValue(c *model.Campaign, f filter.Field) (any, bool) {
	switch f {
	case filter.FieldTitle:
		return strings.ToLower(c.Title), true
	case filter.FieldCreatedAt:
		return c.CreatedAt, true
	case filter.FieldUpdatedAt:
		return c.UpdatedAt, true
	case filter.FieldStartDate:
		return timeValue(c.StartDate)
	case filter.FieldEndDate:
		return timeValue(c.EndDate)
	case filter.FieldGoalAmount:
		return c.GoalAmount, true
	case filter.FieldCurrentAmount:
		return c.CurrentAmount, true
	case filter.FieldGoalPercentage:
		if c.GoalPercentage != nil {
			return *c.GoalPercentage, true
		}
		return c.Percentage(), true
	case filter.FieldDonationCount:
		return float64(c.DonationCount), true
	case filter.FieldIsFeatured:
		if c.IsFeatured {
			return 1.0, true
		}
		return 0.0, true
	}
	return nil, false
}

func timeValue(t *time.Time) (any, bool) {
	if t == nil {
		return nil, false
	}
	return *t, true
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		return av.Compare(b.(time.Time))
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	}
	return 0
}
