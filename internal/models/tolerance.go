package models

// Tolerances are the optional screening thresholds. A nil field applies no constraint.
// MinROI and MaxDelta are fractions.
type Tolerances struct {
	MaxDTE   *float64 `json:"maxDTE,omitempty"`
	MinROI   *float64 `json:"minROI,omitempty"`
	MaxBeta  *float64 `json:"maxBeta,omitempty"`
	MaxDelta *float64 `json:"maxDelta,omitempty"`
}

// ToleranceDisplay is the raw text for each tolerance input. Percent fields never carry a '%'.
type ToleranceDisplay struct {
	MaxDTE   string `json:"maxDTE"`
	MinROI   string `json:"minROI"`
	MaxBeta  string `json:"maxBeta"`
	MaxDelta string `json:"maxDelta"`
}
