package ranking

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"option-screener-go/internal/models"
)

var ErrUnknownSortKey = errors.New("unknown sort key")

// SortKey is a result column the table can be ordered by.
type SortKey string

const (
	KeySymbol             SortKey = "symbol"
	KeyTradeDate          SortKey = "tradeDate"
	KeyExpirationDate     SortKey = "expirationDate"
	KeyDTE                SortKey = "dte"
	KeyType               SortKey = "type"
	KeyStrike             SortKey = "strike"
	KeyBid                SortKey = "bid"
	KeySupportLevel       SortKey = "supportLevel"
	KeyBeta               SortKey = "beta"
	KeyDelta              SortKey = "delta"
	KeyPremium            SortKey = "premium"
	KeyBreakeven          SortKey = "breakeven"
	KeyAnnualROI          SortKey = "annualROI"
	KeyCollateralAtRisk   SortKey = "collateralAtRisk"
	KeySupportVariancePct SortKey = "supportVariancePct"
	KeyHardFail           SortKey = "hardFail"
	KeyScore              SortKey = "score"
	KeySuggestion         SortKey = "suggestion"
)

var allKeys = []SortKey{
	KeySymbol, KeyTradeDate, KeyExpirationDate, KeyDTE, KeyType, KeyStrike, KeyBid,
	KeySupportLevel, KeyBeta, KeyDelta, KeyPremium, KeyBreakeven, KeyAnnualROI,
	KeyCollateralAtRisk, KeySupportVariancePct, KeyHardFail, KeyScore, KeySuggestion,
}

// Keys lists every sortable column in table order.
func Keys() []SortKey {
	return slices.Clone(allKeys)
}

// ParseSortKey validates a column name.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(s)
	if !slices.Contains(allKeys, k) {
		return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
	}
	return k, nil
}

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func (d Direction) sign() int {
	if d == Asc {
		return 1
	}
	return -1
}

// suggestionOrder ranks conservative results above aggressive ones. Unknown labels are 0.
var suggestionOrder = map[string]int{
	models.SuggestionConservative: 3,
	models.SuggestionNeutral:      2,
	models.SuggestionAggressive:   1,
}

// cell is a result value as seen by the comparator.
type cell struct {
	text   string
	num    float64
	isText bool
}

func textCell(s string) cell { return cell{text: s, isText: true} }
func numCell(n float64) cell { return cell{num: n} }
func optCell(p *float64) cell {
	if p == nil {
		return cell{}
	}
	return cell{num: *p}
}

func valueOf(r *models.ResultRow, key SortKey) cell {
	switch key {
	case KeySymbol:
		return textCell(r.Symbol)
	case KeyTradeDate:
		return textCell(r.TradeDate)
	case KeyExpirationDate:
		return textCell(r.ExpirationDate)
	case KeyType:
		return textCell(r.Type)
	case KeySuggestion:
		return textCell(r.Suggestion)
	case KeyDTE:
		return numCell(r.DTE)
	case KeyStrike:
		return numCell(r.Strike)
	case KeyBid:
		return numCell(r.Bid)
	case KeySupportLevel:
		return numCell(r.SupportLevel)
	case KeyBeta:
		return numCell(r.Beta)
	case KeyDelta:
		return numCell(r.Delta)
	case KeyPremium:
		return numCell(r.Premium)
	case KeyBreakeven:
		return numCell(r.Breakeven)
	case KeyAnnualROI:
		return numCell(r.AnnualROI)
	case KeyCollateralAtRisk:
		return optCell(r.CollateralAtRisk)
	case KeySupportVariancePct:
		return optCell(r.SupportVariancePct)
	case KeyHardFail:
		if r.HardFail {
			return numCell(1)
		}
		return numCell(0)
	case KeyScore:
		return numCell(r.Score)
	default:
		return cell{}
	}
}

// comparator returns the ascending comparison for key.
func comparator(key SortKey) func(a, b cell) int {
	switch key {
	case KeySuggestion:
		return func(a, b cell) int {
			return suggestionOrder[a.text] - suggestionOrder[b.text]
		}
	case KeyTradeDate, KeyExpirationDate:
		// YYYY-MM-DD sorts lexically in calendar order.
		return func(a, b cell) int {
			return strings.Compare(a.text, b.text)
		}
	}

	col := collate.New(language.English)
	return func(a, b cell) int {
		if a.isText && b.isText {
			return col.CompareString(a.text, b.text)
		}
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	}
}

// Rank returns a stably sorted copy of rows ordered by key in direction dir.
// rows itself is left untouched.
func Rank(rows []models.ResultRow, key SortKey, dir Direction) []models.ResultRow {
	out := slices.Clone(rows)
	cmp := comparator(key)
	sign := dir.sign()
	slices.SortStableFunc(out, func(a, b models.ResultRow) int {
		return cmp(valueOf(&a, key), valueOf(&b, key)) * sign
	})
	return out
}

// SortState is the active column and direction of the results table.
type SortState struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// DefaultSortState orders by score, best first.
func DefaultSortState() SortState {
	return SortState{Key: KeyScore, Direction: Desc}
}

// Select handles a click on a column header: a new column starts descending,
// the active column flips direction.
func (s *SortState) Select(key SortKey) {
	if s.Key == key {
		if s.Direction == Asc {
			s.Direction = Desc
		} else {
			s.Direction = Asc
		}
		return
	}
	s.Key = key
	s.Direction = Desc
}
