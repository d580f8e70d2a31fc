package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Partition identifies one of the category tables a product lives in.
// Partitions are independent record sets merged only at query time.
type Partition string

const (
	PartitionCosmetic Partition = "cosmetic"
	PartitionPerfume  Partition = "perfume"
	PartitionAroma    Partition = "aroma"
)

// ErrUnknownPartition is returned when a partition name is not one of the known values.
var ErrUnknownPartition = errors.New("domain: unknown partition")

// Partitions returns every partition in canonical order.
func Partitions() []Partition {
	return []Partition{PartitionCosmetic, PartitionPerfume, PartitionAroma}
}

// ParsePartition converts user input (case-insensitive) into a Partition.
func ParsePartition(s string) (Partition, error) {
	p := Partition(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PartitionCosmetic, PartitionPerfume, PartitionAroma:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPartition, s)
}

// Table returns the fully qualified table holding the partition's rows.
func (p Partition) Table() string {
	return "catalog." + string(p) + "_products"
}

func (p Partition) String() string { return string(p) }

// ProductStatus is the visibility flag of a product.
type ProductStatus string

const (
	// StatusActive is the sentinel that makes a product publicly visible.
	StatusActive   ProductStatus = "active"
	StatusInactive ProductStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s ProductStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Product is a catalog record. Its identity is Code within Partition.
// The json tags correspond to the fields expected in API responses/requests.
type Product struct {
	ID             int64         `json:"id"`
	Partition      Partition     `json:"partition"`
	Code           string        `json:"code"`
	CommercialName string        `json:"commercial_name"`
	Range          *string       `json:"range,omitempty"` // gamme
	Origin         *string       `json:"origin,omitempty"`
	Solubility     *string       `json:"solubility,omitempty"`
	Certifications *string       `json:"certifications,omitempty"`
	Benefits       *string       `json:"benefits,omitempty"`
	Description    *string       `json:"description,omitempty"`
	Status         ProductStatus `json:"status"`
	SheetKey       *string       `json:"-"`
	HasSheet       bool          `json:"has_sheet"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SearchFilter is the criteria applied by a single partition query.
type SearchFilter struct {
	Term   string  // free-text, matched against name, code and description
	Range  *string // exact match
	Origin *string // exact match
}
