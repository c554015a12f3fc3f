package features

import (
	"satriarisk/backend/pkg/config"
)

// Feature names known to the application.
const (
	EvidenceUpload = "EVIDENCE_UPLOAD"
)

// IsEnabled reports whether a feature toggle is enabled. Toggles come from
// FEATURE_* environment variables; an undefined feature is disabled.
func IsEnabled(featureName string) bool {
	if config.Cfg.FeatureToggles == nil {
		return false
	}
	enabled, exists := config.Cfg.FeatureToggles[featureName]
	return exists && enabled
}
