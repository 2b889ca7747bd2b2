package models

// Suggestion bands attached to a scored result.
const (
	SuggestionConservative = "Conservative"
	SuggestionNeutral      = "Neutral"
	SuggestionAggressive   = "Aggressive"
)

// BreakdownPart is one itemized contribution to a result's score.
type BreakdownPart struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Max    float64 `json:"max"`
	Earned float64 `json:"earned"`
	Note   string  `json:"note,omitempty"`
}

// ResultRow is a scored trade returned by the evaluator. Rows are never patched;
// a new evaluation replaces the whole set.
type ResultRow struct {
	Symbol             string   `json:"symbol"`
	TradeDate          string   `json:"tradeDate"`
	ExpirationDate     string   `json:"expirationDate"`
	DTE                float64  `json:"dte"`
	Type               string   `json:"type"`
	Strike             float64  `json:"strike"`
	Bid                float64  `json:"bid"`
	SupportLevel       float64  `json:"supportLevel"`
	Beta               float64  `json:"beta"`
	Delta              float64  `json:"delta"`
	Premium            float64  `json:"premium"`
	Breakeven          float64  `json:"breakeven"`
	AnnualROI          float64  `json:"annualROI"`
	CollateralAtRisk   *float64 `json:"collateralAtRisk,omitempty"`
	SupportVariancePct *float64 `json:"supportVariancePct"`
	HardFail           bool     `json:"hardFail"`
	Score              float64  `json:"score"`
	Suggestion         string   `json:"suggestion"`

	Breakdown             []BreakdownPart `json:"breakdown,omitempty"`
	TotalPossible         *float64        `json:"totalPossible,omitempty"`
	PointsBeforePenalties *float64        `json:"pointsBeforePenalties,omitempty"`
	PenaltiesApplied      *float64        `json:"penaltiesApplied,omitempty"`
	PointsFinal           *float64        `json:"pointsFinal,omitempty"`
}

// EarnedTotal sums the earned points of the breakdown.
func (r ResultRow) EarnedTotal() float64 {
	var total float64
	for _, p := range r.Breakdown {
		total += p.Earned
	}
	return total
}
