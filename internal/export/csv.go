package export

import (
	"io"
	"strconv"
	"strings"

	"option-screener-go/internal/models"
)

// Columns is the fixed column order of the results export.
var Columns = []string{
	"symbol", "tradeDate", "expirationDate", "dte", "type", "strike", "bid", "supportLevel", "beta", "delta",
	"premium", "breakeven", "annualROI", "collateralAtRisk", "supportVariancePct", "hardFail", "score", "suggestion",
}

func num(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func optNum(p *float64) string {
	if p == nil {
		return ""
	}
	return num(*p)
}

func cells(r models.ResultRow) []string {
	return []string{
		r.Symbol, r.TradeDate, r.ExpirationDate, num(r.DTE), r.Type,
		num(r.Strike), num(r.Bid), num(r.SupportLevel), num(r.Beta), num(r.Delta),
		num(r.Premium), num(r.Breakeven), num(r.AnnualROI),
		optNum(r.CollateralAtRisk), optNum(r.SupportVariancePct),
		strconv.FormatBool(r.HardFail), num(r.Score), r.Suggestion,
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// CSV renders rows as a header line followed by one line per row.
// Every value is wrapped in double quotes; embedded quotes are doubled.
func CSV(rows []models.ResultRow) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, strings.Join(Columns, ","))
	for _, r := range rows {
		values := cells(r)
		for i, v := range values {
			values[i] = quote(v)
		}
		lines = append(lines, strings.Join(values, ","))
	}
	return strings.Join(lines, "\n")
}

// WriteCSV writes CSV(rows) to w.
func WriteCSV(w io.Writer, rows []models.ResultRow) error {
	_, err := io.WriteString(w, CSV(rows))
	return err
}
