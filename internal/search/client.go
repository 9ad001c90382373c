// Package search queries the campaign search index.
//
// The index is a projection of the primary store and may lag behind it or be
// unavailable. Search never returns an error: an unusable index produces an
// empty, flagged Outcome so callers can decide how to degrade.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/kindfund/kindfund/internal/metrics"
)

// DegradedReason explains why an Outcome carries no results from the index.
type DegradedReason string

const (
	ReasonNone             DegradedReason = ""
	ReasonIndexEmpty       DegradedReason = "index_empty"
	ReasonIndexUnreachable DegradedReason = "index_unreachable"
	ReasonQueryFailed      DegradedReason = "query_failed"
)

// Query is an index query. Filters are ANDed.
type Query struct {
	Term        string
	Filters     []string
	Sort        []string
	Page        int
	HitsPerPage int
}

// Outcome is the result of a Query. IDs are in index order.
type Outcome struct {
	IDs      []int64
	Total    int
	Degraded DegradedReason
}

// IsDegraded reports whether the index could not answer.
func (o Outcome) IsDegraded() bool {
	return o.Degraded != ReasonNone
}

// Index is the subset of the index API the client needs.
// *meilisearch.Index satisfies it.
type Index interface {
	Search(query string, request *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
	GetStats() (*meilisearch.StatsIndex, error)
}

// Config holds connection settings for the index.
type Config struct {
	URL     string
	APIKey  string
	Index   string
	Timeout time.Duration
}

// Client queries the campaign index.
type Client struct {
	index   Index
	logger  *slog.Logger
	metrics metrics.Recorder
}

// New creates a Client connected to a Meilisearch server.
func New(cfg Config, logger *slog.Logger, recorder metrics.Recorder) *Client {
	ms := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:    cfg.URL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	return NewWithIndex(ms.Index(cfg.Index), logger, recorder)
}

// NewWithIndex creates a Client over an existing Index.
func NewWithIndex(index Index, logger *slog.Logger, recorder metrics.Recorder) *Client {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Client{
		index:   index,
		logger:  logger.With("component", "search.client"),
		metrics: recorder,
	}
}

// Search runs a query. It checks the index holds documents before querying.
// Requests are not cancellable once sent; ctx is only checked up front.
func (c *Client) Search(ctx context.Context, q Query) Outcome {
	start := time.Now()
	defer func() { c.metrics.ObserveSearchDuration(time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return c.degrade(ReasonIndexUnreachable, err)
	}

	stats, err := c.index.GetStats()
	if err != nil {
		return c.degrade(ReasonIndexUnreachable, err)
	}
	if stats.NumberOfDocuments == 0 {
		return c.degrade(ReasonIndexEmpty, nil)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	req := &meilisearch.SearchRequest{
		AttributesToRetrieve: []string{"id"},
		Page:                 int64(page),
		HitsPerPage:          int64(q.HitsPerPage),
	}
	if len(q.Filters) > 0 {
		req.Filter = q.Filters
	}
	if len(q.Sort) > 0 {
		req.Sort = q.Sort
	}

	resp, err := c.index.Search(q.Term, req)
	if err != nil {
		return c.degrade(ReasonQueryFailed, err)
	}

	ids := make([]int64, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		id, err := hitID(hit)
		if err != nil {
			c.logger.Warn("skipping search hit", "error", err)
			continue
		}
		ids = append(ids, id)
	}

	total := int(resp.TotalHits)
	if total == 0 && resp.EstimatedTotalHits > 0 {
		total = int(resp.EstimatedTotalHits)
	}

	return Outcome{IDs: ids, Total: total}
}

// Ping checks the index is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.index.GetStats(); err != nil {
		return fmt.Errorf("index stats: %w", err)
	}
	return nil
}

func (c *Client) degrade(reason DegradedReason, err error) Outcome {
	attrs := []any{"reason", string(reason)}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	c.logger.Warn("search index degraded", attrs...)
	c.metrics.IncSearchDegraded(string(reason))
	return Outcome{IDs: []int64{}, Degraded: reason}
}

// hitID extracts the numeric id from a hit document.
func hitID(hit interface{}) (int64, error) {
	doc, ok := hit.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected hit type %T", hit)
	}

	switch v := doc["id"].(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	case int64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("hit has no id")
	default:
		return 0, fmt.Errorf("unexpected id type %T", v)
	}
}
