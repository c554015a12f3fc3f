// Package riskmatrix resolves risk levels from a context's configured
// likelihood×impact matrix and enforces the risk-appetite constraint on
// treatment options.
package riskmatrix

import (
	"errors"
	"fmt"

	"satriarisk/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrUncoveredCombination is returned when a (likelihood, impact) pair has no
// matrix cell. This is a configuration error, never silently defaulted.
type ErrUncoveredCombination struct {
	RiskContextID uuid.UUID
	Likelihood    int
	Impact        int
}

func (e *ErrUncoveredCombination) Error() string {
	return fmt.Sprintf("risk matrix has no cell for likelihood %d and impact %d", e.Likelihood, e.Impact)
}

// Resolve looks up the risk level for a (likelihood, impact) pair in the
// given context's matrix. Pure lookup: same inputs yield the same output as
// long as the matrix is unchanged.
func Resolve(db *gorm.DB, contextID uuid.UUID, likelihood, impact int) (models.RiskLevel, error) {
	var cell models.RiskMatrixCell
	err := db.Where("risk_context_id = ? AND likelihood_level = ? AND impact_level = ?",
		contextID, likelihood, impact).First(&cell).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &ErrUncoveredCombination{RiskContextID: contextID, Likelihood: likelihood, Impact: impact}
		}
		return "", fmt.Errorf("failed to look up matrix cell: %w", err)
	}
	return cell.RiskLevel, nil
}
