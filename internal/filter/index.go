package filter

import (
	"strconv"
	"strings"
	"time"
)

// IndexFilters renders the plan's conditions as search-index filter
// expressions, one per condition. Dates are compared as unix seconds.
func (p Plan) IndexFilters() []string {
	out := make([]string, 0, len(p.Conds))
	for _, c := range p.Conds {
		out = append(out, renderIndexCond(c))
	}
	return out
}

// IndexSort renders the sort keys as "field:asc|desc".
func (p Plan) IndexSort() []string {
	out := make([]string, 0, len(p.Sort))
	for _, k := range p.Sort {
		dir := "asc"
		if k.Desc {
			dir = "desc"
		}
		out = append(out, string(k.Field)+":"+dir)
	}
	return out
}

// SearchTerm returns the full-text query. Phrase terms are re-quoted so the
// index matches them verbatim.
func (p Plan) SearchTerm() string {
	if p.Text == nil {
		return ""
	}
	if p.Text.Phrase {
		return `"` + strings.ReplaceAll(p.Text.Term, `"`, "") + `"`
	}
	return p.Text.Term
}

func renderIndexCond(c Cond) string {
	return string(c.Field) + " " + string(c.Op) + " " + renderIndexValue(c.Value)
}

func renderIndexValue(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return strconv.FormatInt(v.Unix(), 10)
	case []int64:
		parts := make([]string, len(v))
		for i, n := range v {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return `""`
}
