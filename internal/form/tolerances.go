package form

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"option-screener-go/internal/codec"
	"option-screener-go/internal/models"
)

var ErrUnknownTolerance = errors.New("unknown tolerance")

// ToleranceKey names one of the screening thresholds.
type ToleranceKey string

const (
	MaxDTE   ToleranceKey = "maxDTE"
	MinROI   ToleranceKey = "minROI"
	MaxBeta  ToleranceKey = "maxBeta"
	MaxDelta ToleranceKey = "maxDelta"
)

// ToleranceKeys lists the thresholds in display order.
func ToleranceKeys() []ToleranceKey {
	return []ToleranceKey{MaxDTE, MinROI, MaxBeta, MaxDelta}
}

// isPercent reports whether the key is typed as a percentage and stored as a fraction.
func (k ToleranceKey) isPercent() bool {
	return k == MinROI || k == MaxDelta
}

type tolerance struct {
	display string
	value   *float64
}

// Tolerances holds the four thresholds with their input text.
type Tolerances struct {
	fields map[ToleranceKey]*tolerance
}

// NewTolerances returns a configuration with every threshold unset.
func NewTolerances() *Tolerances {
	t := &Tolerances{fields: make(map[ToleranceKey]*tolerance, 4)}
	for _, k := range ToleranceKeys() {
		t.fields[k] = &tolerance{}
	}
	return t
}

// LoadTolerances rebuilds the configuration from stored slots.
func LoadTolerances(values models.Tolerances, display models.ToleranceDisplay) *Tolerances {
	t := NewTolerances()
	t.fields[MaxDTE] = &tolerance{display: display.MaxDTE, value: copyPtr(values.MaxDTE)}
	t.fields[MinROI] = &tolerance{display: display.MinROI, value: copyPtr(values.MinROI)}
	t.fields[MaxBeta] = &tolerance{display: display.MaxBeta, value: copyPtr(values.MaxBeta)}
	t.fields[MaxDelta] = &tolerance{display: display.MaxDelta, value: copyPtr(values.MaxDelta)}
	return t
}

func (t *Tolerances) field(k ToleranceKey) (*tolerance, error) {
	f, ok := t.fields[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTolerance, k)
	}
	return f, nil
}

// OnChange applies a keystroke. The text is reduced to digits and '.' before it is stored.
// Empty text unsets the threshold. Text that does not parse to a finite number is
// rejected and changed reports false.
func (t *Tolerances) OnChange(k ToleranceKey, raw string) (changed bool, err error) {
	f, err := t.field(k)
	if err != nil {
		return false, err
	}

	cleaned := codec.Sanitize(raw)
	if cleaned == "" {
		f.display, f.value = "", nil
		return true, nil
	}

	n, ok := codec.ParseNumber(cleaned)
	if !ok {
		return false, nil
	}
	if k.isPercent() {
		n /= 100
	}
	f.display, f.value = cleaned, &n
	return true, nil
}

// OnCommit clamps the threshold once editing finishes and rewrites its text.
// Percent thresholds are held to [0, 100], maxDTE to a whole number of at least 1,
// and maxBeta is shown with two decimals while its value keeps full precision.
func (t *Tolerances) OnCommit(k ToleranceKey) (changed bool, err error) {
	f, err := t.field(k)
	if err != nil {
		return false, err
	}
	if f.display == "" {
		return false, nil
	}
	n, ok := codec.ParseNumber(f.display)
	if !ok {
		return false, nil
	}

	switch k {
	case MinROI, MaxDelta:
		n = math.Min(math.Max(n, 0), 100)
		f.display = codec.Short(n)
		n /= 100
	case MaxDTE:
		n = math.Floor(math.Max(n, 1))
		f.display = codec.Short(n)
	case MaxBeta:
		f.display = strconv.FormatFloat(n, 'f', 2, 64)
		return true, nil
	}
	f.value = &n
	return true, nil
}

// Clear unsets every threshold and empties its text.
func (t *Tolerances) Clear() {
	for _, k := range ToleranceKeys() {
		t.fields[k] = &tolerance{}
	}
}

func (t *Tolerances) display(k ToleranceKey) string {
	return t.fields[k].display
}

func (t *Tolerances) value(k ToleranceKey) *float64 {
	return copyPtr(t.fields[k].value)
}

// Values returns the canonical thresholds with only the set fields populated.
func (t *Tolerances) Values() models.Tolerances {
	return models.Tolerances{
		MaxDTE:   t.value(MaxDTE),
		MinROI:   t.value(MinROI),
		MaxBeta:  t.value(MaxBeta),
		MaxDelta: t.value(MaxDelta),
	}
}

// DisplayValues returns the text of all thresholds.
func (t *Tolerances) DisplayValues() models.ToleranceDisplay {
	return models.ToleranceDisplay{
		MaxDTE:   t.display(MaxDTE),
		MinROI:   t.display(MinROI),
		MaxBeta:  t.display(MaxBeta),
		MaxDelta: t.display(MaxDelta),
	}
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
