package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ingredient-catalog-service/internal/domain"
)

const (
	contactColumns = `id, name, company, email, phone, subject, message, locale, read, created_at`
	sampleColumns  = `id, name, company, email, phone, partition, product_code, quantity, message, status, created_at, updated_at`
)

func scanContact(row rowScanner) (*domain.ContactSubmission, error) {
	var c domain.ContactSubmission
	err := row.Scan(&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &c.Subject, &c.Message, &c.Locale, &c.Read, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanSample(row rowScanner) (*domain.SampleRequest, error) {
	var s domain.SampleRequest
	err := row.Scan(&s.ID, &s.Name, &s.Company, &s.Email, &s.Phone, &s.Partition, &s.ProductCode,
		&s.Quantity, &s.Message, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// validID reports whether id can be compared against a uuid column.
// Anything else is treated as not found instead of a driver error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pageClause(argID int) string {
	return fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1)
}

// --- SubmissionStorer Implementation ---

func (s *PostgresStore) CreateContact(ctx context.Context, c *domain.ContactSubmission) (*domain.ContactSubmission, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query := `
		INSERT INTO catalog.contact_submissions (id, name, company, email, phone, subject, message, locale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + contactColumns + `;`

	created, err := scanContact(s.db.QueryRowContext(ctx, query,
		c.ID, c.Name, c.Company, c.Email, c.Phone, c.Subject, c.Message, c.Locale))
	if err != nil {
		return nil, fmt.Errorf("store: CreateContact failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, params ListContactsParams) ([]domain.ContactSubmission, int, error) {
	var queryArgs []any
	whereCondition := ""
	argID := 1
	if params.Unread != nil {
		whereCondition = fmt.Sprintf(" WHERE read = $%d", argID)
		queryArgs = append(queryArgs, !*params.Unread)
		argID++
	}

	var totalCount int
	countQuery := "SELECT COUNT(*) FROM catalog.contact_submissions" + whereCondition
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListContacts failed to count: %w", err)
	}
	if totalCount == 0 {
		return []domain.ContactSubmission{}, 0, nil
	}

	dataQuery := "SELECT " + contactColumns + " FROM catalog.contact_submissions" + whereCondition + pageClause(argID)
	rows, err := s.db.QueryContext(ctx, dataQuery, append(queryArgs, params.Limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListContacts failed to query: %w", err)
	}
	defer rows.Close()

	contacts := make([]domain.ContactSubmission, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListContacts failed to scan row: %w", err)
		}
		contacts = append(contacts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListContacts rows error: %w", err)
	}
	return contacts, totalCount, nil
}

func (s *PostgresStore) MarkContactRead(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrContactNotFound
	}
	result, err := s.db.ExecContext(ctx, `UPDATE catalog.contact_submissions SET read = TRUE WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: MarkContactRead failed to execute update: %w", err)
	}
	return expectOneRow(result, ErrContactNotFound, "MarkContactRead")
}

func (s *PostgresStore) DeleteContact(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrContactNotFound
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM catalog.contact_submissions WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteContact failed to execute delete: %w", err)
	}
	return expectOneRow(result, ErrContactNotFound, "DeleteContact")
}

func (s *PostgresStore) CreateSampleRequest(ctx context.Context, req *domain.SampleRequest) (*domain.SampleRequest, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = domain.SamplePending
	}
	query := `
		INSERT INTO catalog.sample_requests (id, name, company, email, phone, partition, product_code, quantity, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + sampleColumns + `;`

	created, err := scanSample(s.db.QueryRowContext(ctx, query,
		req.ID, req.Name, req.Company, req.Email, req.Phone, req.Partition, req.ProductCode,
		req.Quantity, req.Message, req.Status))
	if err != nil {
		return nil, fmt.Errorf("store: CreateSampleRequest failed to scan row: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListSampleRequests(ctx context.Context, params ListSamplesParams) ([]domain.SampleRequest, int, error) {
	var queryArgs []any
	var whereClauses []string
	argID := 1
	if params.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argID))
		queryArgs = append(queryArgs, *params.Status)
		argID++
	}
	whereCondition := ""
	if len(whereClauses) > 0 {
		whereCondition = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var totalCount int
	countQuery := "SELECT COUNT(*) FROM catalog.sample_requests" + whereCondition
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListSampleRequests failed to count: %w", err)
	}
	if totalCount == 0 {
		return []domain.SampleRequest{}, 0, nil
	}

	dataQuery := "SELECT " + sampleColumns + " FROM catalog.sample_requests" + whereCondition + pageClause(argID)
	rows, err := s.db.QueryContext(ctx, dataQuery, append(queryArgs, params.Limit, params.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListSampleRequests failed to query: %w", err)
	}
	defer rows.Close()

	requests := make([]domain.SampleRequest, 0)
	for rows.Next() {
		r, err := scanSample(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: ListSampleRequests failed to scan row: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListSampleRequests rows error: %w", err)
	}
	return requests, totalCount, nil
}

func (s *PostgresStore) UpdateSampleStatus(ctx context.Context, id string, status domain.SampleStatus) (*domain.SampleRequest, error) {
	if !validID(id) {
		return nil, ErrSampleRequestNotFound
	}
	query := `
		UPDATE catalog.sample_requests SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
		RETURNING ` + sampleColumns + `;`

	updated, err := scanSample(s.db.QueryRowContext(ctx, query, status, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSampleRequestNotFound
		}
		return nil, fmt.Errorf("store: UpdateSampleStatus failed to scan row: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) DeleteSampleRequest(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrSampleRequestNotFound
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM catalog.sample_requests WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteSampleRequest failed to execute delete: %w", err)
	}
	return expectOneRow(result, ErrSampleRequestNotFound, "DeleteSampleRequest")
}

func expectOneRow(result sql.Result, notFound error, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s failed to get rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
