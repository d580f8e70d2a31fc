package domain

import "time"

// ContactSubmission is a message left through the public contact form.
type ContactSubmission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Company   *string   `json:"company,omitempty"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Locale    string    `json:"locale"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// SampleStatus tracks the handling of a sample request.
type SampleStatus string

const (
	SamplePending   SampleStatus = "pending"
	SampleSent      SampleStatus = "sent"
	SampleCancelled SampleStatus = "cancelled"
)

// Valid reports whether s is a known sample status.
func (s SampleStatus) Valid() bool {
	switch s {
	case SamplePending, SampleSent, SampleCancelled:
		return true
	}
	return false
}

// SampleRequest asks for a sample of one catalog product.
type SampleRequest struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Company     string       `json:"company"`
	Email       string       `json:"email"`
	Phone       *string      `json:"phone,omitempty"`
	Partition   Partition    `json:"partition"`
	ProductCode string       `json:"product_code"`
	Quantity    *string      `json:"quantity,omitempty"`
	Message     *string      `json:"message,omitempty"`
	Status      SampleStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
