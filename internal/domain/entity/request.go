package entity

import (
	"time"

	"github.com/ipecgroup/budget-portal/internal/domain/event"
	"github.com/ipecgroup/budget-portal/internal/domain/workflow"
)

// PaymentRequest is one financial request moving through its approval chain.
//
// History is the authoritative state; Status is a denormalized cache of the
// log's net effect and must never be mutated without appending the matching
// events. Scope is fixed at creation and never changed by transitions.
type PaymentRequest struct {
	ID          int64             `json:"id"`
	Serial      string            `json:"serial,omitempty"`
	DateJalali  string            `json:"date_jalali,omitempty"`
	Scope       workflow.UnitKind `json:"scope"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`

	// Amount is in the smallest currency unit.
	Amount         int64  `json:"amount"`
	CashAmount     *int64 `json:"cash_amount,omitempty"`
	CashDateJalali string `json:"cash_date_jalali,omitempty"`
	CreditAmount   *int64 `json:"credit_amount,omitempty"`
	CreditPay      string `json:"credit_pay,omitempty"`

	BeneficiaryName string `json:"beneficiary_name,omitempty"`
	BankInfo        string `json:"bank_info,omitempty"`

	DocID         string `json:"doc_id,omitempty"`
	DocOther      string `json:"doc_other,omitempty"`
	DocNumber     string `json:"doc_number,omitempty"`
	DocDateJalali string `json:"doc_date_jalali,omitempty"`

	CurrencyTypeID   *int64 `json:"currency_type_id,omitempty"`
	CurrencySourceID *int64 `json:"currency_source_id,omitempty"`

	ProjectID  *int64 `json:"project_id,omitempty"`
	BudgetCode string `json:"budget_code,omitempty"`

	// Attachments is opaque JSON the engine passes through untouched.
	Attachments string `json:"attachments,omitempty"`

	Status      Status    `json:"status"`
	History     event.Log `json:"history"`
	CreatedByID int64     `json:"created_by_id"`

	// Version implements the optimistic-concurrency check on the row; a
	// stale writer loses and must retry from a fresh read.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentStep derives the pending step from the audit log.
func (r *PaymentRequest) CurrentStep() (workflow.Step, bool) {
	return r.History.CurrentStep()
}

// Status is the denormalized lifecycle state of a payment request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusReturned Status = "returned"
)

var terminalStatuses = map[Status]bool{
	StatusApproved: true,
	StatusRejected: true,
}

// IsTerminal returns true when no further workflow action is possible.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is one of the lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusReturned:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
