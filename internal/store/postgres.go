package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"ingredient-catalog-service/internal/domain"
)

// Predefined errors for store operations
var (
	ErrProductNotFound       = errors.New("store: product not found")
	ErrProductCodeExists     = errors.New("store: product code already exists in this partition")
	ErrContactNotFound       = errors.New("store: contact submission not found")
	ErrSampleRequestNotFound = errors.New("store: sample request not found")
)

const productColumns = `id, code, commercial_name, product_range, origin, solubility, certifications, benefits, description, status, sheet_key, created_at, updated_at`

// PostgresStore implements ProductStorer, SubmissionStorer and the catalog
// partition source on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL and verifies the connection with a ping.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, partition domain.Partition) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID, &p.Code, &p.CommercialName, &p.Range, &p.Origin, &p.Solubility,
		&p.Certifications, &p.Benefits, &p.Description, &p.Status, &p.SheetKey,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Partition = partition
	p.HasSheet = p.SheetKey != nil && *p.SheetKey != ""
	return &p, nil
}

func scanProducts(rows *sql.Rows, partition domain.Partition) ([]domain.Product, error) {
	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows, partition)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// tableFor maps a partition to its table, refusing anything unknown so the
// name can be interpolated into SQL.
func tableFor(p domain.Partition) (string, error) {
	parsed, err := domain.ParsePartition(string(p))
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return parsed.Table(), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// --- ProductStorer Implementation ---

func (s *PostgresStore) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	table, err := tableFor(product.Partition)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s
			(code, commercial_name, product_range, origin, solubility, certifications, benefits, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s;`, table, productColumns)

	row := s.db.QueryRowContext(ctx, query,
		product.Code, product.CommercialName, product.Range, product.Origin, product.Solubility,
		product.Certifications, product.Benefits, product.Description, product.Status,
	)
	created, err := scanProduct(row, product.Partition)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrProductCodeExists
		}
		return nil, fmt.Errorf("store: CreateProduct failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, partition domain.Partition, code string) (*domain.Product, error) {
	table, err := tableFor(partition)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code = $1;`, productColumns, table)

	p, err := scanProduct(s.db.QueryRowContext(ctx, query, code), partition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProduct failed to scan row: %w", err)
	}
	return p, nil
}

// GetActiveProduct returns the product only when it is publicly visible.
func (s *PostgresStore) GetActiveProduct(ctx context.Context, partition domain.Partition, code string) (*domain.Product, error) {
	table, err := tableFor(partition)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code = $1 AND status = $2;`, productColumns, table)

	p, err := scanProduct(s.db.QueryRowContext(ctx, query, code, domain.StatusActive), partition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetActiveProduct failed to scan row: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, partition domain.Partition, params ListProductsParams) ([]domain.Product, int, error) {
	table, err := tableFor(partition)
	if err != nil {
		return nil, 0, err
	}

	var queryArgs []any
	var whereClauses []string
	argID := 1

	if params.SearchQuery != nil && strings.TrimSpace(*params.SearchQuery) != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(commercial_name ILIKE $%d OR code ILIKE $%d)", argID, argID))
		queryArgs = append(queryArgs, likePattern(*params.SearchQuery))
		argID++
	}
	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argID))
		queryArgs = append(queryArgs, *params.Status)
		argID++
	}

	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM " + table + whereCondition
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to count products: %w", err)
	}
	if totalCount == 0 {
		return []domain.Product{}, 0, nil
	}

	dataQuery := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY commercial_name ASC, code ASC LIMIT $%d OFFSET $%d",
		productColumns, table, whereCondition, argID, argID+1)
	rows, err := s.db.QueryContext(ctx, dataQuery, append(queryArgs, params.Limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows, partition)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to read rows: %w", err)
	}
	return products, totalCount, nil
}

// UpdateProduct rewrites every descriptive field. The code is the key and
// cannot be changed.
func (s *PostgresStore) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	table, err := tableFor(product.Partition)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET commercial_name = $1, product_range = $2, origin = $3, solubility = $4,
			certifications = $5, benefits = $6, description = $7, status = COALESCE(NULLIF($8, ''), status), updated_at = CURRENT_TIMESTAMP
		WHERE code = $9
		RETURNING %s;`, table, productColumns)

	row := s.db.QueryRowContext(ctx, query,
		product.CommercialName, product.Range, product.Origin, product.Solubility,
		product.Certifications, product.Benefits, product.Description, product.Status, product.Code,
	)
	updated, err := scanProduct(row, product.Partition)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: UpdateProduct failed to scan row: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, partition domain.Partition, code string) error {
	table, err := tableFor(partition)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE code = $1;`, table), code)
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SetProductSheet stores (or clears, with a nil key) the technical sheet object key.
func (s *PostgresStore) SetProductSheet(ctx context.Context, partition domain.Partition, code string, key *string) error {
	table, err := tableFor(partition)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET sheet_key = $1, updated_at = CURRENT_TIMESTAMP WHERE code = $2;`, table)
	result, err := s.db.ExecContext(ctx, query, key, code)
	if err != nil {
		return fmt.Errorf("store: SetProductSheet failed to execute update: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: SetProductSheet failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// UpsertProducts inserts or overwrites products by code in one transaction.
// Either every row is written or none is.
func (s *PostgresStore) UpsertProducts(ctx context.Context, partition domain.Partition, products []domain.Product) (int, error) {
	table, err := tableFor(partition)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: UpsertProducts failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
			(code, commercial_name, product_range, origin, solubility, certifications, benefits, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			commercial_name = EXCLUDED.commercial_name,
			product_range = EXCLUDED.product_range,
			origin = EXCLUDED.origin,
			solubility = EXCLUDED.solubility,
			certifications = EXCLUDED.certifications,
			benefits = EXCLUDED.benefits,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP;`, table))
	if err != nil {
		return 0, fmt.Errorf("store: UpsertProducts failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.ExecContext(ctx,
			p.Code, p.CommercialName, p.Range, p.Origin, p.Solubility,
			p.Certifications, p.Benefits, p.Description, p.Status,
		); err != nil {
			return 0, fmt.Errorf("store: UpsertProducts failed on code %q: %w", p.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: UpsertProducts failed to commit: %w", err)
	}
	return len(products), nil
}

// AllProducts returns every row of the partition, active or not, ordered by code.
func (s *PostgresStore) AllProducts(ctx context.Context, partition domain.Partition) ([]domain.Product, error) {
	table, err := tableFor(partition)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY code ASC;`, productColumns, table))
	if err != nil {
		return nil, fmt.Errorf("store: AllProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows, partition)
	if err != nil {
		return nil, fmt.Errorf("store: AllProducts failed to read rows: %w", err)
	}
	return products, nil
}
