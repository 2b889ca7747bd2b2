package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind determines how a field's raw text is parsed and how its canonical value is rendered.
type Kind string

const (
	Currency Kind = "currency"
	Decimal  Kind = "decimal"
	Percent  Kind = "percent"
	Text     Kind = "text"
	Date     Kind = "date"
	Select   Kind = "select"
)

// DateLayout is the shape date fields are expected to hold.
const DateLayout = "2006-01-02"

// IsNumeric reports whether values of this kind are held as numbers.
func (k Kind) IsNumeric() bool {
	return k == Currency || k == Decimal || k == Percent
}

// Value is the canonical form of a field. Numeric kinds use Number, all others use Text.
type Value struct {
	Number float64
	Text   string
}

// Sanitize keeps only digits and '.', collapsing every '.' after the first.
// "1,234.56" -> "1234.56", "1.2.3" -> "1.23", "12.5%" -> "12.5".
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	seenDot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			if !seenDot {
				b.WriteRune(r)
				seenDot = true
			}
		}
	}
	return b.String()
}

// ParseNumber parses a sanitized string. ok is false when s is non-empty but not a finite number.
func ParseNumber(s string) (n float64, ok bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// Parse converts raw input text into a canonical value. It never fails:
// anything that does not reduce to a number becomes 0.
func Parse(raw string, kind Kind) Value {
	switch kind {
	case Currency, Decimal:
		n, _ := ParseNumber(Sanitize(raw))
		return Value{Number: n}
	case Percent:
		n, _ := ParseNumber(Sanitize(raw))
		return Value{Number: n / 100}
	default:
		return Value{Text: raw}
	}
}

// Format renders a canonical value as the committed display text for the kind.
func Format(v Value, kind Kind) string {
	switch kind {
	case Currency:
		return "$" + strconv.FormatFloat(v.Number, 'f', 2, 64)
	case Decimal:
		return strconv.FormatFloat(v.Number, 'f', 2, 64)
	case Percent:
		return strconv.FormatFloat(v.Number*100, 'f', 1, 64) + "%"
	default:
		return v.Text
	}
}

// Short renders a float with the fewest digits that round-trip, e.g. 100 -> "100", 12.5 -> "12.5".
func Short(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// IsDate reports whether s has the YYYY-MM-DD shape and names a real calendar day.
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ShortDate renders "2024-03-01" as "03-01-24". Anything that is not YYYY-MM-DD is returned as-is.
func ShortDate(iso string) string {
	t, err := time.Parse(DateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format("01-02-06")
}

// USD returns a dollar amount with thousands separators, e.g. -1234.5 -> "-$1,234.50".
func USD(amount float64, decimals int) string {
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	formatted := strconv.FormatFloat(math.Abs(amount), 'f', decimals, 64)
	intPart, decPart, hasDec := strings.Cut(formatted, ".")

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if hasDec {
		return fmt.Sprintf("%s$%s.%s", sign, intPart, decPart)
	}
	return sign + "$" + intPart
}
