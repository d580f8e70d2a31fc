// Package csvio reads and writes catalog products as CSV.
package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"ingredient-catalog-service/internal/domain"
)

// Header is the column order written by Write.
var Header = []string{
	"code", "commercial_name", "range", "origin", "solubility",
	"certifications", "benefits", "description", "status",
}

var (
	ErrEmptyFile     = errors.New("csvio: file is empty")
	ErrMissingColumn = errors.New("csvio: required column missing")
)

// RowError describes a rejected data row. Line is 1-based and counts the header.
type RowError struct {
	Line int    `json:"line"`
	Code string `json:"code,omitempty"`
	Msg  string `json:"message"`
}

func (e RowError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("line %d (%s): %s", e.Line, e.Code, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ReadOptions controls decoding of an import file.
type ReadOptions struct {
	// Windows1252 decodes the input from Windows-1252 instead of UTF-8.
	Windows1252 bool
}

// Result holds the accepted products and the rejected rows of an import.
type Result struct {
	Products []domain.Product
	Errors   []RowError
}

// Write encodes products with the Header column order.
func Write(w io.Writer, products []domain.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("csvio: failed to write header: %w", err)
	}
	for _, p := range products {
		record := []string{
			p.Code, p.CommercialName, deref(p.Range), deref(p.Origin), deref(p.Solubility),
			deref(p.Certifications), deref(p.Benefits), deref(p.Description), string(p.Status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csvio: failed to write %q: %w", p.Code, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses an import file. A missing header or required column fails the
// whole file; problems in individual rows are collected in Result.Errors.
func Read(r io.Reader, opts ReadOptions) (*Result, error) {
	if opts.Windows1252 {
		r = transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}
	br := bufio.NewReader(r)

	headerLine, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csvio: failed to read header: %w", err)
	}
	headerLine = strings.TrimPrefix(headerLine, "\ufeff")
	if strings.TrimSpace(headerLine) == "" {
		return nil, ErrEmptyFile
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	cr.Comma = detectDelimiter(headerLine)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csvio: failed to parse header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"code", "commercial_name"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	res := &Result{Products: []domain.Product{}}
	seen := map[string]int{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvio: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		p := domain.Product{
			Code:           field("code"),
			CommercialName: field("commercial_name"),
			Range:          optional(field("range")),
			Origin:         optional(field("origin")),
			Solubility:     optional(field("solubility")),
			Certifications: optional(field("certifications")),
			Benefits:       optional(field("benefits")),
			Description:    optional(field("description")),
			Status:         domain.ProductStatus(strings.ToLower(field("status"))),
		}
		if p.Status == "" {
			p.Status = domain.StatusActive
		}

		switch {
		case p.Code == "":
			res.Errors = append(res.Errors, RowError{Line: line, Msg: "code is empty"})
			continue
		case p.CommercialName == "":
			res.Errors = append(res.Errors, RowError{Line: line, Code: p.Code, Msg: "commercial_name is empty"})
			continue
		case !p.Status.Valid():
			res.Errors = append(res.Errors, RowError{Line: line, Code: p.Code, Msg: fmt.Sprintf("unknown status %q", p.Status)})
			continue
		}
		if first, dup := seen[p.Code]; dup {
			res.Errors = append(res.Errors, RowError{Line: line, Code: p.Code, Msg: fmt.Sprintf("duplicate code, first seen on line %d", first)})
			continue
		}
		seen[p.Code] = line
		res.Products = append(res.Products, p)
	}
	return res, nil
}

// detectDelimiter picks ';' when the header uses it more than ','.
func detectDelimiter(headerLine string) rune {
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
