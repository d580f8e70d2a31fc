// Package catalog merges the per-partition product queries into one
// paginated, collated search result.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"ingredient-catalog-service/internal/domain"
)

// DefaultPageSize is the number of products per catalog page.
const DefaultPageSize = 24

// ErrPartitionUnavailable is returned in fail-fast mode when a partition query fails.
var ErrPartitionUnavailable = errors.New("catalog: partition unavailable")

// Policy decides what a failing partition query does to the whole search.
type Policy int

const (
	// BestEffort treats a failed partition as zero rows and keeps going.
	BestEffort Policy = iota
	// FailFast cancels the remaining queries and returns an error.
	FailFast
)

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "best_effort":
		return BestEffort, nil
	case "fail_fast":
		return FailFast, nil
	}
	return BestEffort, fmt.Errorf("catalog: unknown failure policy %q", s)
}

// PartitionSource runs one filtered query against one partition.
type PartitionSource interface {
	SearchPartition(ctx context.Context, partition domain.Partition, filter domain.SearchFilter) ([]domain.Product, error)
}

// Recorder receives search observations. Satisfied by *metrics.Metrics.
type Recorder interface {
	PartitionFailed(partition string)
	SearchCompleted(total int)
}

// Query is a single public search request.
type Query struct {
	Term     string
	Range    *string
	Origin   *string
	Category *domain.Partition // nil searches every partition
	Page     int               // 1-based, values below 1 are clamped to 1
	Locale   string            // collation locale, falls back to the aggregator default
}

// Result is one page of merged search results.
type Result struct {
	Products         []domain.Product   `json:"products"`
	Total            int                `json:"total"`
	Page             int                `json:"page"`
	PageSize         int                `json:"page_size"`
	TotalPages       int                `json:"total_pages"`
	FailedPartitions []domain.Partition `json:"failed_partitions,omitempty"`
}

// Options configures an Aggregator.
type Options struct {
	PageSize         int
	Locale           string
	Policy           Policy
	PartitionTimeout time.Duration // zero disables the per-partition deadline
	Logger           *zap.Logger
	Recorder         Recorder
}

// Aggregator fans a search out to the partition source and merges the results.
type Aggregator struct {
	source   PartitionSource
	pageSize int
	locale   language.Tag
	policy   Policy
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// NewAggregator creates an Aggregator reading from source.
func NewAggregator(source PartitionSource, opts Options) *Aggregator {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		source:   source,
		pageSize: pageSize,
		locale:   parseLocale(opts.Locale, language.French),
		policy:   opts.Policy,
		timeout:  opts.PartitionTimeout,
		logger:   logger,
		recorder: opts.Recorder,
	}
}

// Search runs q against the selected partitions and returns the requested page.
// In BestEffort mode it never returns an error; failed partitions are listed
// in Result.FailedPartitions.
func (a *Aggregator) Search(ctx context.Context, q Query) (*Result, error) {
	partitions := domain.Partitions()
	if q.Category != nil {
		partitions = []domain.Partition{*q.Category}
	}
	filter := domain.SearchFilter{Term: q.Term, Range: q.Range, Origin: q.Origin}

	perPartition, failed, err := a.fetch(ctx, partitions, filter)
	if err != nil {
		return nil, err
	}

	var all []domain.Product
	for _, rows := range perPartition {
		all = append(all, rows...)
	}

	col := collate.New(parseLocale(q.Locale, a.locale))
	slices.SortStableFunc(all, func(x, y domain.Product) int {
		return col.CompareString(x.CommercialName, y.CommercialName)
	})

	if a.recorder != nil {
		a.recorder.SearchCompleted(len(all))
	}

	page := max(q.Page, 1)
	return &Result{
		Products:         Window(all, page, a.pageSize),
		Total:            len(all),
		Page:             page,
		PageSize:         a.pageSize,
		TotalPages:       TotalPages(len(all), a.pageSize),
		FailedPartitions: failed,
	}, nil
}

// fetch queries every partition concurrently. Slot i of the returned slice
// holds the rows of partitions[i] regardless of completion order.
func (a *Aggregator) fetch(ctx context.Context, partitions []domain.Partition, filter domain.SearchFilter) ([][]domain.Product, []domain.Partition, error) {
	results := make([][]domain.Product, len(partitions))
	errs := make([]error, len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range partitions {
		g.Go(func() error {
			rows, err := a.query(gctx, p, filter)
			if err != nil {
				errs[i] = err
				if a.policy == FailFast {
					return fmt.Errorf("%w: %s: %w", ErrPartitionUnavailable, p, err)
				}
				return nil
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.Error("catalog search aborted", zap.Error(err))
		return nil, nil, err
	}

	var failed []domain.Partition
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed = append(failed, partitions[i])
		if a.recorder != nil {
			a.recorder.PartitionFailed(partitions[i].String())
		}
		a.logger.Warn("partition query failed, continuing without it",
			zap.String("partition", partitions[i].String()),
			zap.Error(err),
		)
	}
	return results, failed, nil
}

func (a *Aggregator) query(ctx context.Context, p domain.Partition, filter domain.SearchFilter) ([]domain.Product, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	rows, err := a.source.SearchPartition(ctx, p, filter)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Partition = p
	}
	return rows, nil
}

// Window returns the items of the 1-based page, clamped to the bounds of items.
func Window[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 || max(page, 1)-1 >= TotalPages(len(items), pageSize) {
		return []T{}
	}
	offset := (max(page, 1) - 1) * pageSize
	end := min(offset+pageSize, len(items))
	return items[offset:end]
}

// TotalPages is ceil(total/pageSize).
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func parseLocale(s string, fallback language.Tag) language.Tag {
	if s == "" {
		return fallback
	}
	tag, err := language.Parse(s)
	if err != nil {
		return fallback
	}
	return tag
}
