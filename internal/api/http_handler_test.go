package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ingredient-catalog-service/internal/assets"
	"ingredient-catalog-service/internal/auth"
	"ingredient-catalog-service/internal/catalog"
	"ingredient-catalog-service/internal/domain"
	"ingredient-catalog-service/internal/notify"
	"ingredient-catalog-service/internal/store"
)

// MockProductStorer is a mock implementation of store.ProductStorer
type MockProductStorer struct {
	mock.Mock
}

func (m *MockProductStorer) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) GetProduct(ctx context.Context, partition domain.Partition, code string) (*domain.Product, error) {
	args := m.Called(ctx, partition, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) GetActiveProduct(ctx context.Context, partition domain.Partition, code string) (*domain.Product, error) {
	args := m.Called(ctx, partition, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) ListProducts(ctx context.Context, partition domain.Partition, params store.ListProductsParams) ([]domain.Product, int, error) {
	args := m.Called(ctx, partition, params)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Int(1), args.Error(2)
}

func (m *MockProductStorer) UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductStorer) DeleteProduct(ctx context.Context, partition domain.Partition, code string) error {
	return m.Called(ctx, partition, code).Error(0)
}

func (m *MockProductStorer) SetProductSheet(ctx context.Context, partition domain.Partition, code string, key *string) error {
	return m.Called(ctx, partition, code, key).Error(0)
}

func (m *MockProductStorer) UpsertProducts(ctx context.Context, partition domain.Partition, products []domain.Product) (int, error) {
	args := m.Called(ctx, partition, products)
	return args.Int(0), args.Error(1)
}

func (m *MockProductStorer) AllProducts(ctx context.Context, partition domain.Partition) ([]domain.Product, error) {
	args := m.Called(ctx, partition)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

// MockSubmissionStorer is a mock implementation of store.SubmissionStorer
type MockSubmissionStorer struct {
	mock.Mock
}

func (m *MockSubmissionStorer) CreateContact(ctx context.Context, c *domain.ContactSubmission) (*domain.ContactSubmission, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContactSubmission), args.Error(1)
}

func (m *MockSubmissionStorer) ListContacts(ctx context.Context, params store.ListContactsParams) ([]domain.ContactSubmission, int, error) {
	args := m.Called(ctx, params)
	var contacts []domain.ContactSubmission
	if arg0 := args.Get(0); arg0 != nil {
		contacts = arg0.([]domain.ContactSubmission)
	}
	return contacts, args.Int(1), args.Error(2)
}

func (m *MockSubmissionStorer) MarkContactRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSubmissionStorer) DeleteContact(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSubmissionStorer) CreateSampleRequest(ctx context.Context, s *domain.SampleRequest) (*domain.SampleRequest, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SampleRequest), args.Error(1)
}

func (m *MockSubmissionStorer) ListSampleRequests(ctx context.Context, params store.ListSamplesParams) ([]domain.SampleRequest, int, error) {
	args := m.Called(ctx, params)
	var requests []domain.SampleRequest
	if arg0 := args.Get(0); arg0 != nil {
		requests = arg0.([]domain.SampleRequest)
	}
	return requests, args.Int(1), args.Error(2)
}

func (m *MockSubmissionStorer) UpdateSampleStatus(ctx context.Context, id string, status domain.SampleStatus) (*domain.SampleRequest, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SampleRequest), args.Error(1)
}

func (m *MockSubmissionStorer) DeleteSampleRequest(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockSearcher is a mock implementation of Searcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, q catalog.Query) (*catalog.Result, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Result), args.Error(1)
}

// recordingPublisher keeps published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

// memoryBadges is an in-memory notify.Badges.
type memoryBadges struct {
	mu     sync.Mutex
	counts map[notify.Badge]int64
	err    error
}

func newMemoryBadges() *memoryBadges { return &memoryBadges{counts: map[notify.Badge]int64{}} }

func (b *memoryBadges) Increment(_ context.Context, badge notify.Badge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.counts[badge]++
	return nil
}

func (b *memoryBadges) Counts(context.Context) (notify.Counts, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return notify.Counts{}, b.err
	}
	return notify.Counts{Contacts: b.counts[notify.BadgeContacts], Samples: b.counts[notify.BadgeSamples]}, nil
}

func (b *memoryBadges) Ack(_ context.Context, badge notify.Badge) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.counts[badge] = 0
	return nil
}

// memorySheets is an in-memory assets.SheetStore.
type memorySheets struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemorySheets() *memorySheets { return &memorySheets{objects: map[string][]byte{}} }

func (s *memorySheets) Upload(_ context.Context, partition domain.Partition, code string, r io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := assets.SheetKey(partition, code)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *memorySheets) PresignedURL(_ context.Context, key string) (*url.URL, error) {
	return url.Parse("https://files.example.com/catalog/" + key + "?X-Amz-Signature=abc")
}

func (s *memorySheets) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

const testJWTSecret = "test-secret"

type testEnv struct {
	server      *httptest.Server
	products    *MockProductStorer
	submissions *MockSubmissionStorer
	searcher    *MockSearcher
	events      *recordingPublisher
	badges      *memoryBadges
	sheets      *memorySheets
	token       string
}

// Helper for setting up tests with a chi router and handler
func setupTestChiServer(t *testing.T, customize func(*Deps)) *testEnv {
	t.Helper()
	verifier := auth.NewVerifier(testJWTSecret, "admin")
	token, err := verifier.Issue("admin@example.com", time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		products:    new(MockProductStorer),
		submissions: new(MockSubmissionStorer),
		searcher:    new(MockSearcher),
		events:      &recordingPublisher{},
		badges:      newMemoryBadges(),
		sheets:      newMemorySheets(),
		token:       token,
	}
	deps := Deps{
		Searcher:    env.searcher,
		Products:    env.products,
		Submissions: env.submissions,
		Sheets:      env.sheets,
		Events:      env.events,
		Badges:      env.badges,
		AdminAuth:   verifier.Middleware,
	}
	if customize != nil {
		customize(&deps)
	}

	handler := NewHTTPHandler(deps)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

// do sends a request, adding the admin token when admin is set.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, admin bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if admin {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	res, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

// Helper function to get a pointer (useful for optional fields in domain structs)
func PtrTo[T any](v T) *T {
	return &v
}
