package quote

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/quote/calc"
)

// Status is the workflow state of a quote.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
}

// CanTransition reports whether the workflow permits moving from -> to.
// Approved and rejected quotes are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Calculable reports whether a quote in this status may be recalculated.
// Once a quote is decided its pricing is frozen in its versions.
func (s Status) Calculable() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// Quote is the aggregate root: the quote-level variable layer plus the
// product lines carrying their own override layer. All pricing output lives
// in versions, never on the quote itself.
type Quote struct {
	ID        uuid.UUID           `json:"id"`
	DocNumber string              `json:"doc_number"`
	OrgID     int64               `json:"org_id"`
	Customer  string              `json:"customer"`
	Status    Status              `json:"status"`
	Variables calc.QuoteVariables `json:"variables"`
	Products  []calc.Product      `json:"products"`
	CreatedBy int64               `json:"created_by"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}
