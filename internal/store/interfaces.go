package store

import (
	"context"

	"ingredient-catalog-service/internal/domain"
)

// ListProductsParams holds parameters for the admin product listing.
type ListProductsParams struct {
	Limit       int
	Offset      int
	SearchQuery *string               // matched against commercial name and code
	Status      *domain.ProductStatus // nil lists every status
}

// ProductStorer defines the database operations for catalog products.
// Every method addresses one partition; a product's key is its code.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, partition domain.Partition, code string) (*domain.Product, error)
	GetActiveProduct(ctx context.Context, partition domain.Partition, code string) (*domain.Product, error)
	ListProducts(ctx context.Context, partition domain.Partition, params ListProductsParams) ([]domain.Product, int, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, partition domain.Partition, code string) error
	SetProductSheet(ctx context.Context, partition domain.Partition, code string, key *string) error
	UpsertProducts(ctx context.Context, partition domain.Partition, products []domain.Product) (int, error)
	AllProducts(ctx context.Context, partition domain.Partition) ([]domain.Product, error)
}

// ListContactsParams filters the contact submission listing.
type ListContactsParams struct {
	Limit  int
	Offset int
	Unread *bool
}

// ListSamplesParams filters the sample request listing.
type ListSamplesParams struct {
	Limit  int
	Offset int
	Status *domain.SampleStatus
}

// SubmissionStorer defines the database operations for public form submissions.
type SubmissionStorer interface {
	CreateContact(ctx context.Context, c *domain.ContactSubmission) (*domain.ContactSubmission, error)
	ListContacts(ctx context.Context, params ListContactsParams) ([]domain.ContactSubmission, int, error)
	MarkContactRead(ctx context.Context, id string) error
	DeleteContact(ctx context.Context, id string) error

	CreateSampleRequest(ctx context.Context, s *domain.SampleRequest) (*domain.SampleRequest, error)
	ListSampleRequests(ctx context.Context, params ListSamplesParams) ([]domain.SampleRequest, int, error)
	UpdateSampleStatus(ctx context.Context, id string, status domain.SampleStatus) (*domain.SampleRequest, error)
	DeleteSampleRequest(ctx context.Context, id string) error
}
