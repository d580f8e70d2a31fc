package store

import (
	"context"
	"fmt"
	"strings"

	"ingredient-catalog-service/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps a user term for a substring ILIKE match. LIKE wildcards in
// the term are escaped and matched literally.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}

// buildSearchQuery returns the public search SQL for one partition and its args.
func buildSearchQuery(table string, filter domain.SearchFilter) (string, []any) {
	whereClauses := []string{"status = $1"}
	queryArgs := []any{domain.StatusActive}
	argID := 2

	if term := strings.TrimSpace(filter.Term); term != "" {
		whereClauses = append(whereClauses,
			fmt.Sprintf("(commercial_name ILIKE $%d OR code ILIKE $%d OR description ILIKE $%d)", argID, argID, argID))
		queryArgs = append(queryArgs, likePattern(term))
		argID++
	}
	if filter.Range != nil && *filter.Range != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("product_range = $%d", argID))
		queryArgs = append(queryArgs, *filter.Range)
		argID++
	}
	if filter.Origin != nil && *filter.Origin != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("origin = $%d", argID))
		queryArgs = append(queryArgs, *filter.Origin)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY commercial_name ASC",
		productColumns, table, strings.Join(whereClauses, " AND "))
	return query, queryArgs
}

// SearchPartition returns the active products of one partition matching
// filter. An empty, non-nil slice is returned when nothing matches.
func (s *PostgresStore) SearchPartition(ctx context.Context, partition domain.Partition, filter domain.SearchFilter) ([]domain.Product, error) {
	table, err := tableFor(partition)
	if err != nil {
		return nil, err
	}
	query, args := buildSearchQuery(table, filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: SearchPartition %s failed to query: %w", partition, err)
	}
	defer rows.Close()

	products, err := scanProducts(rows, partition)
	if err != nil {
		return nil, fmt.Errorf("store: SearchPartition %s failed to read rows: %w", partition, err)
	}
	return products, nil
}
