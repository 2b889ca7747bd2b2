package form

import (
	"errors"
	"fmt"

	"option-screener-go/internal/codec"
	"option-screener-go/internal/models"
)

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrRowOutOfRange = errors.New("row index out of range")
)

// FieldName identifies an editable column of a trade row.
type FieldName string

const (
	FieldSymbol         FieldName = "symbol"
	FieldTradeDate      FieldName = "tradeDate"
	FieldExpirationDate FieldName = "expirationDate"
	FieldType           FieldName = "type"
	FieldStrike         FieldName = "strike"
	FieldBid            FieldName = "bid"
	FieldSupportLevel   FieldName = "supportLevel"
	FieldBeta           FieldName = "beta"
	FieldDelta          FieldName = "delta"
)

type column struct {
	name FieldName
	kind codec.Kind
}

// columns fixes the position and kind of every field in a Row.
var columns = [...]column{
	{FieldSymbol, codec.Text},
	{FieldTradeDate, codec.Date},
	{FieldExpirationDate, codec.Date},
	{FieldType, codec.Select},
	{FieldStrike, codec.Currency},
	{FieldBid, codec.Currency},
	{FieldSupportLevel, codec.Currency},
	{FieldBeta, codec.Decimal},
	{FieldDelta, codec.Percent},
}

// Fields lists the editable fields in column order.
func Fields() []FieldName {
	names := make([]FieldName, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// KindOf returns the codec kind of a field.
func KindOf(name FieldName) (codec.Kind, bool) {
	i := indexOf(name)
	if i < 0 {
		return "", false
	}
	return columns[i].kind, true
}

func indexOf(name FieldName) int {
	for i, c := range columns {
		if c.name == name {
			return i
		}
	}
	return -1
}

// Field pairs the text shown in an input with the canonical value parsed from it.
type Field struct {
	Display   string
	Canonical codec.Value
}

// Row is one trade with its display text. It is a plain value: copying a Row copies every field.
type Row struct {
	fields [len(columns)]Field
}

// NewRow returns a row with the defaults of a freshly added trade.
func NewRow() Row {
	var r Row
	i := indexOf(FieldType)
	r.fields[i] = Field{Display: models.TypePut, Canonical: codec.Value{Text: models.TypePut}}
	return r
}

// Field returns the current pair for name.
func (r Row) Field(name FieldName) (Field, error) {
	i := indexOf(name)
	if i < 0 {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return r.fields[i], nil
}

// OnChange stores raw as the display text and its parsed value as the canonical value.
func (r *Row) OnChange(name FieldName, raw string) error {
	i := indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	r.fields[i] = Field{Display: raw, Canonical: codec.Parse(raw, columns[i].kind)}
	return nil
}

// OnCommit replaces the display text with the formatted canonical value.
func (r *Row) OnCommit(name FieldName) error {
	i := indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	r.fields[i].Display = codec.Format(r.fields[i].Canonical, columns[i].kind)
	return nil
}

func (r Row) num(name FieldName) float64 {
	return r.fields[indexOf(name)].Canonical.Number
}

func (r Row) text(name FieldName) string {
	return r.fields[indexOf(name)].Canonical.Text
}

func (r Row) display(name FieldName) string {
	return r.fields[indexOf(name)].Display
}

// Trade returns the canonical record.
func (r Row) Trade() models.TradeInput {
	return models.TradeInput{
		Symbol:         r.text(FieldSymbol),
		TradeDate:      r.text(FieldTradeDate),
		ExpirationDate: r.text(FieldExpirationDate),
		Type:           r.text(FieldType),
		Strike:         r.num(FieldStrike),
		Bid:            r.num(FieldBid),
		SupportLevel:   r.num(FieldSupportLevel),
		Beta:           r.num(FieldBeta),
		Delta:          r.num(FieldDelta),
	}
}

// Display returns the text record.
func (r Row) Display() models.TradeDisplay {
	return models.TradeDisplay{
		Symbol:         r.display(FieldSymbol),
		TradeDate:      r.display(FieldTradeDate),
		ExpirationDate: r.display(FieldExpirationDate),
		Type:           r.display(FieldType),
		Strike:         r.display(FieldStrike),
		Bid:            r.display(FieldBid),
		SupportLevel:   r.display(FieldSupportLevel),
		Beta:           r.display(FieldBeta),
		Delta:          r.display(FieldDelta),
	}
}

// RowFromRecords rebuilds a row from a stored canonical record and its display text.
func RowFromRecords(t models.TradeInput, d models.TradeDisplay) Row {
	var r Row
	set := func(name FieldName, display string, v codec.Value) {
		r.fields[indexOf(name)] = Field{Display: display, Canonical: v}
	}
	set(FieldSymbol, d.Symbol, codec.Value{Text: t.Symbol})
	set(FieldTradeDate, d.TradeDate, codec.Value{Text: t.TradeDate})
	set(FieldExpirationDate, d.ExpirationDate, codec.Value{Text: t.ExpirationDate})
	set(FieldType, d.Type, codec.Value{Text: t.Type})
	set(FieldStrike, d.Strike, codec.Value{Number: t.Strike})
	set(FieldBid, d.Bid, codec.Value{Number: t.Bid})
	set(FieldSupportLevel, d.SupportLevel, codec.Value{Number: t.SupportLevel})
	set(FieldBeta, d.Beta, codec.Value{Number: t.Beta})
	set(FieldDelta, d.Delta, codec.Value{Number: t.Delta})
	return r
}

// RowFromTrade rebuilds a row from a canonical record alone, with every field committed.
func RowFromTrade(t models.TradeInput) Row {
	r := RowFromRecords(t, models.TradeDisplay{})
	for i := range r.fields {
		r.fields[i].Display = codec.Format(r.fields[i].Canonical, columns[i].kind)
	}
	return r
}
