package seeders

import (
	"time"

	"satriarisk/backend/internal/models"
	srlog "satriarisk/backend/pkg/log"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunMigrations runs the GORM auto-migration for all models. The SQL
// migration files are the source of truth in production; this path exists
// for the setup CLI and local development.
func RunMigrations(db *gorm.DB) error {
	log := srlog.L.Named("RunMigrations")
	log.Info("Auto-migrating database schema...")

	if err := models.AutoMigrateDB(db); err != nil {
		log.Error("GORM AutoMigrate failed", zap.Error(err))
		return err
	}

	log.Info("Database schema migration completed successfully.")
	return nil
}

// SeedInitialData populates reference data every deployment needs. Each
// seeder checks for existing rows, so rerunning is safe.
func SeedInitialData(db *gorm.DB) error {
	log := srlog.L.Named("SeedInitialData")
	log.Info("Seeding initial data...")

	if err := seedAssetCategories(db); err != nil {
		log.Error("Failed to seed asset categories", zap.Error(err))
		return err
	}

	log.Info("Initial data seeding completed successfully.")
	return nil
}

func seedAssetCategories(db *gorm.DB) error {
	categories := []models.AssetCategory{
		{Name: "Information", Description: "Data, records and documentation assets."},
		{Name: "Application", Description: "Business applications and software services."},
		{Name: "Infrastructure", Description: "Servers, network and physical infrastructure."},
		{Name: "People", Description: "Key personnel and organizational roles."},
	}

	for _, category := range categories {
		result := db.Where(models.AssetCategory{Name: category.Name}).FirstOrCreate(&category)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// SeedDemoContext creates an INACTIVE 5x5 demo risk context with two
// categories, full scales and a complete matrix. Development only: it gives
// a fresh database something to activate.
func SeedDemoContext(db *gorm.DB) error {
	log := srlog.L.Named("SeedDemoContext")

	var count int64
	if err := db.Model(&models.RiskContext{}).Where("code = ?", "DEMO-2026").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Info("Demo context already present, skipping")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		ctx := models.RiskContext{
			Name:              "Demo Risk Context 2026",
			Code:              "DEMO-2026",
			Description:       "Seeded demo configuration with a complete 5x5 matrix.",
			PeriodStart:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:         time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			MatrixSize:        5,
			RiskAppetiteLevel: models.RiskLevelMedium,
			Status:            models.ContextInactive,
		}
		if err := tx.Create(&ctx).Error; err != nil {
			return err
		}

		likelihoodLabels := []string{"Rare", "Unlikely", "Possible", "Likely", "Almost Certain"}
		impactLabels := []string{"Insignificant", "Minor", "Moderate", "Major", "Severe"}

		for i, name := range []string{"Operational", "Financial"} {
			category := models.RiskCategory{
				RiskContextID: ctx.ID,
				Name:          name,
				SortOrder:     i + 1,
			}
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
			for level := 1; level <= ctx.MatrixSize; level++ {
				likelihood := models.LikelihoodScale{
					RiskCategoryID: category.ID,
					Level:          level,
					Label:          likelihoodLabels[level-1],
				}
				if err := tx.Create(&likelihood).Error; err != nil {
					return err
				}
				impact := models.ImpactScale{
					RiskCategoryID: category.ID,
					Level:          level,
					Label:          impactLabels[level-1],
				}
				if err := tx.Create(&impact).Error; err != nil {
					return err
				}
			}
		}

		for likelihood := 1; likelihood <= ctx.MatrixSize; likelihood++ {
			for impact := 1; impact <= ctx.MatrixSize; impact++ {
				cell := models.RiskMatrixCell{
					RiskContextID:   ctx.ID,
					LikelihoodLevel: likelihood,
					ImpactLevel:     impact,
					RiskLevel:       demoCellLevel(likelihood, impact),
				}
				if err := tx.Create(&cell).Error; err != nil {
					return err
				}
			}
		}

		log.Info("Demo context seeded", zap.String("contextID", ctx.ID.String()))
		return nil
	})
}

// demoCellLevel assigns a conventional diagonal coloring to the 5x5 grid.
func demoCellLevel(likelihood, impact int) models.RiskLevel {
	score := likelihood * impact
	switch {
	case score >= 17:
		return models.RiskLevelCritical
	case score >= 10:
		return models.RiskLevelHigh
	case score >= 5:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

// FullSetup runs migrations and the base seed in one call, for the setup
// CLI.
func FullSetup(db *gorm.DB) error {
	if err := RunMigrations(db); err != nil {
		return err
	}
	return SeedInitialData(db)
}
