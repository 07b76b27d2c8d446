package models

import "time"

// InvoiceStatus marks the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusSent InvoiceStatus = "SENT"
	InvoiceStatusPaid InvoiceStatus = "PAID"
)

// InvoiceCategory groups invoices by billing purpose.
type InvoiceCategory string

const (
	InvoiceCategoryTuition InvoiceCategory = "TUITION"
)

// Invoice is the first billing obligation generated for a newly enrolled
// student. It is created atomically with the student record.
type Invoice struct {
	ID        string          `db:"id" json:"id"`
	StudentID string          `db:"student_id" json:"student_id"`
	Amount    float64         `db:"amount" json:"amount"`
	DueDate   time.Time       `db:"due_date" json:"due_date"`
	Status    InvoiceStatus   `db:"status" json:"status"`
	Category  InvoiceCategory `db:"category" json:"category"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
