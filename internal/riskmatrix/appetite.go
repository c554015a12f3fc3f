package riskmatrix

import (
	"fmt"

	"satriarisk/backend/internal/models"
)

// ErrTreatmentNotAllowed is returned when a treatment option is picked that
// the risk appetite does not permit for the computed residual level.
type ErrTreatmentNotAllowed struct {
	Option   models.TreatmentOption
	Residual models.RiskLevel
	Appetite models.RiskLevel
}

func (e *ErrTreatmentNotAllowed) Error() string {
	return fmt.Sprintf("treatment option %s is not allowed: residual risk level %s exceeds risk appetite %s",
		e.Option, e.Residual, e.Appetite)
}

// ordinalValue maps a risk level onto the fixed LOW<MEDIUM<HIGH<CRITICAL
// ordinal. Unknown or empty levels map to 0.
func ordinalValue(level models.RiskLevel) int {
	switch level {
	case models.RiskLevelLow:
		return 1
	case models.RiskLevelMedium:
		return 2
	case models.RiskLevelHigh:
		return 3
	case models.RiskLevelCritical:
		return 4
	default:
		return 0
	}
}

// Exceeds reports whether level a is strictly greater than level b on the
// risk-level ordinal.
func Exceeds(a, b models.RiskLevel) bool {
	return ordinalValue(a) > ordinalValue(b)
}

// AllowedTreatments returns the treatment options legal for a residual level
// under the given appetite. When the residual exceeds the appetite, only
// MITIGATE and TRANSFER remain legal.
func AllowedTreatments(residual, appetite models.RiskLevel) []models.TreatmentOption {
	if ordinalValue(residual) == 0 || ordinalValue(appetite) == 0 {
		// Not yet constrained.
		return []models.TreatmentOption{models.TreatmentAccept, models.TreatmentMitigate, models.TreatmentTransfer, models.TreatmentAvoid}
	}
	if Exceeds(residual, appetite) {
		return []models.TreatmentOption{models.TreatmentMitigate, models.TreatmentTransfer}
	}
	return []models.TreatmentOption{models.TreatmentAccept, models.TreatmentMitigate, models.TreatmentTransfer, models.TreatmentAvoid}
}

// ValidateTreatment checks a chosen treatment option against the appetite
// constraint. A missing residual level or appetite makes this a no-op.
func ValidateTreatment(residual, appetite models.RiskLevel, option models.TreatmentOption) error {
	if option == "" {
		return nil
	}
	if ordinalValue(residual) == 0 || ordinalValue(appetite) == 0 {
		return nil
	}
	for _, allowed := range AllowedTreatments(residual, appetite) {
		if option == allowed {
			return nil
		}
	}
	return &ErrTreatmentNotAllowed{Option: option, Residual: residual, Appetite: appetite}
}
