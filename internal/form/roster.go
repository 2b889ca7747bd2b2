package form

import (
	"fmt"

	"option-screener-go/internal/models"
)

// Roster is the ordered list of trade rows being edited.
type Roster struct {
	rows []Row
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{}
}

// LoadRoster rebuilds a roster from the stored canonical and display slots.
// When the two slots disagree in length the display slot is discarded and
// every row's text is re-derived from its canonical record.
func LoadRoster(trades []models.TradeInput, displays []models.TradeDisplay) *Roster {
	r := &Roster{rows: make([]Row, 0, len(trades))}
	paired := len(displays) == len(trades)
	for i, t := range trades {
		if paired {
			r.rows = append(r.rows, RowFromRecords(t, displays[i]))
		} else {
			r.rows = append(r.rows, RowFromTrade(t))
		}
	}
	return r
}

// Len returns the number of rows.
func (r *Roster) Len() int {
	return len(r.rows)
}

// Row returns a copy of row i.
func (r *Roster) Row(i int) (Row, bool) {
	if i < 0 || i >= len(r.rows) {
		return Row{}, false
	}
	return r.rows[i], true
}

// Add appends an empty put trade.
func (r *Roster) Add() {
	r.rows = append(r.rows, NewRow())
}

// Duplicate inserts a copy of row i at i+1. It reports false and does nothing when i is out of range.
func (r *Roster) Duplicate(i int) bool {
	if i < 0 || i >= len(r.rows) {
		return false
	}
	r.rows = append(r.rows, Row{})
	copy(r.rows[i+2:], r.rows[i+1:])
	r.rows[i+1] = r.rows[i]
	return true
}

// Remove deletes row i. It reports false and does nothing when i is out of range.
func (r *Roster) Remove(i int) bool {
	if i < 0 || i >= len(r.rows) {
		return false
	}
	r.rows = append(r.rows[:i], r.rows[i+1:]...)
	return true
}

// Reset drops every row.
func (r *Roster) Reset() {
	r.rows = nil
}

// OnChange applies a keystroke to field name of row i.
func (r *Roster) OnChange(i int, name FieldName, raw string) error {
	if i < 0 || i >= len(r.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	return r.rows[i].OnChange(name, raw)
}

// OnCommit normalizes the display text of field name of row i.
func (r *Roster) OnCommit(i int, name FieldName) error {
	if i < 0 || i >= len(r.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, i)
	}
	return r.rows[i].OnCommit(name)
}

// Trades returns the canonical records in row order.
func (r *Roster) Trades() []models.TradeInput {
	out := make([]models.TradeInput, len(r.rows))
	for i, row := range r.rows {
		out[i] = row.Trade()
	}
	return out
}

// Displays returns the display records in row order.
func (r *Roster) Displays() []models.TradeDisplay {
	out := make([]models.TradeDisplay, len(r.rows))
	for i, row := range r.rows {
		out[i] = row.Display()
	}
	return out
}
