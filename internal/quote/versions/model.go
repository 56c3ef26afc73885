package versions

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-trade/meridian/internal/quote/calc"
)

// Version is an immutable record of one calculation run: the inputs as they
// were resolved, the rate material that was frozen for the run, and the full
// output. Recalculating a quote appends a new version, it never rewrites an
// old one.
type Version struct {
	ID        uuid.UUID           `json:"id"`
	QuoteID   uuid.UUID           `json:"quote_id"`
	VersionNo int                 `json:"version_no"`
	Variables calc.QuoteVariables `json:"variables"`
	Products  []calc.Product      `json:"products"`
	Rates     calc.RateSet        `json:"rates"`
	Results   []calc.PhaseResult  `json:"results"`
	Summary   calc.Summary        `json:"summary"`
	Exported  bool                `json:"exported"`
	CreatedAt time.Time           `json:"created_at"`
}
