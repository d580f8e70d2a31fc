package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingredient-catalog-service/internal/auth"
	"ingredient-catalog-service/internal/domain"
)

type fakeProducts struct {
	upserted  map[domain.Partition][]domain.Product
	all       []domain.Product
	upsertErr error
	released  bool
}

func (f *fakeProducts) UpsertProducts(_ context.Context, p domain.Partition, products []domain.Product) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	if f.upserted == nil {
		f.upserted = map[domain.Partition][]domain.Product{}
	}
	f.upserted[p] = append(f.upserted[p], products...)
	return len(products), nil
}

func (f *fakeProducts) AllProducts(context.Context, domain.Partition) ([]domain.Product, error) {
	return f.all, nil
}

func runCLI(t *testing.T, fake *fakeProducts, args ...string) (string, error) {
	t.Helper()
	c := &cli{
		openProducts: func(context.Context) (productTransfer, func(), error) {
			return fake, func() { fake.released = true }, nil
		},
	}
	root := c.newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aroma.csv")
	require.NoError(t, os.WriteFile(path, []byte("code,commercial_name\nLAV-02,Lavande\nLAV-02,Lavande fine\n"), 0o600))

	fake := &fakeProducts{}
	out, err := runCLI(t, fake, "import", "Aroma", path)
	require.NoError(t, err)

	assert.Len(t, fake.upserted[domain.PartitionAroma], 1)
	assert.True(t, fake.released)
	assert.Contains(t, out, "imported 1 products into aroma")
	assert.Contains(t, out, "rejected line 3 (LAV-02): duplicate code, first seen on line 2")
}

func TestImportCmd_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.csv")
	require.NoError(t, os.WriteFile(path, []byte("code,commercial_name\nA,B\n"), 0o600))

	_, err := runCLI(t, &fakeProducts{}, "import", "food", path)
	assert.Error(t, err)

	_, err = runCLI(t, &fakeProducts{}, "import", "cosmetic", path, "--encoding", "latin1")
	assert.ErrorContains(t, err, "unsupported encoding")

	_, err = runCLI(t, &fakeProducts{upsertErr: errors.New("tx aborted")}, "import", "cosmetic", path)
	assert.ErrorContains(t, err, "tx aborted")

	_, err = runCLI(t, &fakeProducts{}, "import", "cosmetic")
	assert.Error(t, err)
}

func TestExportCmd(t *testing.T) {
	fake := &fakeProducts{all: []domain.Product{
		{Code: "AMB-01", CommercialName: "Ambre", Status: domain.StatusActive},
	}}
	out, err := runCLI(t, fake, "export", "perfume")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "code,commercial_name"))
	assert.True(t, strings.HasPrefix(lines[1], "AMB-01,Ambre"))

	dest := filepath.Join(t.TempDir(), "perfume.csv")
	_, err = runCLI(t, fake, "export", "perfume", "-o", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AMB-01,Ambre")
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "cli-secret")
	t.Setenv("AUTH_ADMIN_ROLE", "admin")

	out, err := runCLI(t, &fakeProducts{}, "token", "--email", "ops@example.com", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.NewVerifier("cli-secret", "admin").Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)

	_, err = runCLI(t, &fakeProducts{}, "token")
	assert.Error(t, err, "email is required")
}
