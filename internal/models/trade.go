package models

// Option types accepted in the type column.
const (
	TypePut  = "put"
	TypeCall = "call"
)

// TradeInput is the canonical form of one candidate trade, as sent to the evaluator.
type TradeInput struct {
	Symbol         string  `json:"symbol"`
	TradeDate      string  `json:"tradeDate"`      // YYYY-MM-DD
	ExpirationDate string  `json:"expirationDate"` // YYYY-MM-DD
	Type           string  `json:"type"`           // "put" or "call"
	Strike         float64 `json:"strike"`
	Bid            float64 `json:"bid"`
	SupportLevel   float64 `json:"supportLevel"`
	Beta           float64 `json:"beta"`
	Delta          float64 `json:"delta"` // fraction, 0.20 = 20%
}

// TradeDisplay holds the text currently shown in each input of a trade row.
type TradeDisplay struct {
	Symbol         string `json:"symbol"`
	TradeDate      string `json:"tradeDate"`
	ExpirationDate string `json:"expirationDate"`
	Type           string `json:"type"`
	Strike         string `json:"strike"`
	Bid            string `json:"bid"`
	SupportLevel   string `json:"supportLevel"`
	Beta           string `json:"beta"`
	Delta          string `json:"delta"`
}
