package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingredient-catalog-service/internal/domain"
)

// Helper function to create a mock DB and PostgresStore for testing
func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

// Helper function to get a pointer (useful for optional fields in domain structs)
func PtrTo[T any](v T) *T {
	return &v
}

var productRowColumns = []string{
	"id", "code", "commercial_name", "product_range", "origin", "solubility",
	"certifications", "benefits", "description", "status", "sheet_key", "created_at", "updated_at",
}

func productRow(rows *sqlmock.Rows, id int64, code, name string, sheetKey any, now time.Time) *sqlmock.Rows {
	return rows.AddRow(id, code, name, "Huiles", "Maroc", nil, "Ecocert", nil, "Huile vierge", "active", sheetKey, now, now)
}

func TestPostgresStore_CreateProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	toCreate := &domain.Product{
		Partition:      domain.PartitionCosmetic,
		Code:           "ARG-01",
		CommercialName: "Argan",
		Range:          PtrTo("Huiles"),
		Origin:         PtrTo("Maroc"),
		Certifications: PtrTo("Ecocert"),
		Description:    PtrTo("Huile vierge"),
		Status:         domain.StatusActive,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO catalog.cosmetic_products")).
		WithArgs("ARG-01", "Argan", "Huiles", "Maroc", nil, "Ecocert", nil, "Huile vierge", "active").
		WillReturnRows(productRow(sqlmock.NewRows(productRowColumns), 1, "ARG-01", "Argan", nil, now))

	created, err := store.CreateProduct(context.Background(), toCreate)

	require.NoError(t, err, "CreateProduct should not return an error")
	require.NotNil(t, created)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, domain.PartitionCosmetic, created.Partition)
	assert.Equal(t, "Argan", created.CommercialName)
	assert.Equal(t, domain.StatusActive, created.Status)
	assert.Equal(t, "Maroc", *created.Origin)
	assert.Nil(t, created.Solubility)
	assert.False(t, created.HasSheet)
	assert.WithinDuration(t, now, created.CreatedAt, time.Second)

	require.NoError(t, mock.ExpectationsWereMet(), "SQLmock expectations were not met")
}

func TestPostgresStore_CreateProduct_CodeExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO catalog.perfume_products")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "perfume_products_code_key"})

	created, err := store.CreateProduct(context.Background(), &domain.Product{
		Partition: domain.PartitionPerfume, Code: "AMB-01", CommercialName: "Amber", Status: domain.StatusActive,
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductCodeExists), "Error should be ErrProductCodeExists")
	assert.Nil(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UnknownPartitionIsRejected(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	_, err := store.GetProduct(context.Background(), domain.Partition("food; DROP TABLE x"), "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownPartition)

	_, err = store.SearchPartition(context.Background(), domain.Partition("blog"), domain.SearchFilter{})
	assert.ErrorIs(t, err, domain.ErrUnknownPartition)

	require.NoError(t, mock.ExpectationsWereMet(), "no query may reach the database")
}

func TestPostgresStore_GetProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog.aroma_products WHERE code = $1;")).
		WithArgs("LAV-02").
		WillReturnRows(productRow(sqlmock.NewRows(productRowColumns), 7, "LAV-02", "Lavande", "sheets/aroma/LAV-02.pdf", now))

	p, err := store.GetProduct(context.Background(), domain.PartitionAroma, "LAV-02")

	require.NoError(t, err)
	assert.Equal(t, domain.PartitionAroma, p.Partition)
	assert.True(t, p.HasSheet)
	require.NotNil(t, p.SheetKey)
	assert.Equal(t, "sheets/aroma/LAV-02.pdf", *p.SheetKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetActiveProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog.cosmetic_products WHERE code = $1 AND status = $2;")).
		WithArgs("GONE", "active").
		WillReturnError(sql.ErrNoRows)

	p, err := store.GetActiveProduct(context.Background(), domain.PartitionCosmetic, "GONE")

	assert.True(t, errors.Is(err, ErrProductNotFound), "Error should be ErrProductNotFound")
	assert.Nil(t, p)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	status := domain.StatusInactive
	params := ListProductsParams{Limit: 2, Offset: 2, SearchQuery: PtrTo("ar"), Status: &status}

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COUNT(*) FROM catalog.cosmetic_products WHERE (commercial_name ILIKE $1 OR code ILIKE $1) AND status = $2")).
		WithArgs("%ar%", "inactive").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	rows := sqlmock.NewRows(productRowColumns)
	productRow(rows, 3, "ARG-03", "Argousier", nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY commercial_name ASC, code ASC LIMIT $3 OFFSET $4")).
		WithArgs("%ar%", "inactive", 2, 2).
		WillReturnRows(rows)

	products, total, err := store.ListProducts(context.Background(), domain.PartitionCosmetic, params)

	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, products, 1)
	assert.Equal(t, "Argousier", products[0].CommercialName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_EmptySkipsDataQuery(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM catalog.perfume_products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	products, total, err := store.ListProducts(context.Background(), domain.PartitionPerfume, ListProductsParams{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE catalog.aroma_products")).
		WithArgs("Menthe", nil, nil, nil, nil, nil, nil, "active", "MEN-01").
		WillReturnError(sql.ErrNoRows)

	_, err := store.UpdateProduct(context.Background(), &domain.Product{
		Partition: domain.PartitionAroma, Code: "MEN-01", CommercialName: "Menthe", Status: domain.StatusActive,
	})

	assert.True(t, errors.Is(err, ErrProductNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProduct_EmptyStatusKeepsCurrent(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta("status = COALESCE(NULLIF($8, ''), status)")).
		WithArgs("Menthe", nil, nil, nil, nil, nil, nil, "", "MEN-01").
		WillReturnRows(productRow(sqlmock.NewRows(productRowColumns), 4, "MEN-01", "Menthe", nil, now))

	updated, err := store.UpdateProduct(context.Background(), &domain.Product{
		Partition: domain.PartitionAroma, Code: "MEN-01", CommercialName: "Menthe",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, updated.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteProduct(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	query := regexp.QuoteMeta("DELETE FROM catalog.cosmetic_products WHERE code = $1;")
	mock.ExpectExec(query).WithArgs("ARG-01").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("NOPE").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteProduct(context.Background(), domain.PartitionCosmetic, "ARG-01"))
	err := store.DeleteProduct(context.Background(), domain.PartitionCosmetic, "NOPE")
	assert.True(t, errors.Is(err, ErrProductNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetProductSheet(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE catalog.perfume_products SET sheet_key = $1")).
		WithArgs("sheets/perfume/AMB-01.pdf", "AMB-01").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SetProductSheet(context.Background(), domain.PartitionPerfume, "AMB-01", PtrTo("sheets/perfume/AMB-01.pdf"))

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("ON CONFLICT (code) DO UPDATE SET"))
	prep.ExpectExec().WithArgs("A-1", "Aloe", nil, nil, nil, nil, nil, nil, "active").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("B-1", "Bambou", nil, nil, nil, nil, nil, nil, "inactive").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.UpsertProducts(context.Background(), domain.PartitionCosmetic, []domain.Product{
		{Code: "A-1", CommercialName: "Aloe", Status: domain.StatusActive},
		{Code: "B-1", CommercialName: "Bambou", Status: domain.StatusInactive},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProducts_RollsBackOnError(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO catalog.aroma_products"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	n, err := store.UpsertProducts(context.Background(), domain.PartitionAroma, []domain.Product{
		{Code: "A-1", CommercialName: "Aloe", Status: domain.StatusActive},
		{Code: "B-1", CommercialName: "Bambou", Status: domain.StatusActive},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"B-1"`)
	assert.Equal(t, 0, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AllProducts(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(productRowColumns)
	productRow(rows, 1, "A-1", "Aloe", nil, now)
	productRow(rows, 2, "B-1", "Bambou", nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog.aroma_products ORDER BY code ASC;")).WillReturnRows(rows)

	products, err := store.AllProducts(context.Background(), domain.PartitionAroma)

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "B-1", products[1].Code)
	assert.Equal(t, domain.PartitionAroma, products[1].Partition)
	require.NoError(t, mock.ExpectationsWereMet())
}
