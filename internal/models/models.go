package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Custom string types for statuses, levels and roles to enforce specific values
type ContextStatus string
type WorksheetStatus string
type AssessmentStatus string
type RiskLevel string
type TreatmentOption string
type MitigationStatus string
type MitigationPriority string
type UserRole string

const (
	ContextInactive ContextStatus = "INACTIVE"
	ContextActive   ContextStatus = "ACTIVE"
	ContextArchived ContextStatus = "ARCHIVED"

	WorksheetDraft     WorksheetStatus = "DRAFT"
	WorksheetSubmitted WorksheetStatus = "SUBMITTED"
	WorksheetApproved  WorksheetStatus = "APPROVED"
	WorksheetArchived  WorksheetStatus = "ARCHIVED"

	AssessmentDraft     AssessmentStatus = "DRAFT"
	AssessmentSubmitted AssessmentStatus = "SUBMITTED"
	AssessmentInReview  AssessmentStatus = "IN_REVIEW"
	AssessmentApproved  AssessmentStatus = "APPROVED"
	AssessmentRejected  AssessmentStatus = "REJECTED"
	AssessmentArchived  AssessmentStatus = "ARCHIVED"

	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"

	TreatmentAccept   TreatmentOption = "ACCEPT"
	TreatmentMitigate TreatmentOption = "MITIGATE"
	TreatmentTransfer TreatmentOption = "TRANSFER"
	TreatmentAvoid    TreatmentOption = "AVOID"

	MitigationPlanned    MitigationStatus = "PLANNED"
	MitigationInProgress MitigationStatus = "IN_PROGRESS"
	MitigationCompleted  MitigationStatus = "COMPLETED"
	MitigationCancelled  MitigationStatus = "CANCELLED"

	PriorityLow      MitigationPriority = "LOW"
	PriorityMedium   MitigationPriority = "MEDIUM"
	PriorityHigh     MitigationPriority = "HIGH"
	PriorityCritical MitigationPriority = "CRITICAL"

	RoleAdmin     UserRole = "admin"
	RoleRiskOwner UserRole = "risk_owner"
	// RoleRiskCommittee is the central reviewing role: it approves worksheets
	// and assessments and validates mitigations across all work units.
	RoleRiskCommittee UserRole = "risk_committee"
)

// RoleList stores a user's roles as a comma-separated TEXT column,
// same approach as a JSON array would be but simpler to query by hand.
type RoleList []UserRole

func (r RoleList) String() string {
	parts := make([]string, 0, len(r))
	for _, role := range r {
		parts = append(parts, string(role))
	}
	return strings.Join(parts, ",")
}

func ParseRoleList(s string) RoleList {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	roles := make(RoleList, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			roles = append(roles, UserRole(p))
		}
	}
	return roles
}

func (r RoleList) Has(role UserRole) bool {
	for _, own := range r {
		if own == role {
			return true
		}
	}
	return false
}

// WorkUnit is an organizational unit (unit kerja). Worksheets and assets are
// scoped to exactly one unit.
type WorkUnit struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Code        string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Users       []User    `gorm:"foreignKey:WorkUnitID" json:"-"`
	Assets      []Asset   `gorm:"foreignKey:WorkUnitID" json:"-"`
}

func (u *WorkUnit) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	WorkUnitID   uuid.UUID `gorm:"type:uuid;not null;index" json:"work_unit_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	// Roles is stored comma-separated, e.g. "risk_owner,risk_committee".
	Roles     string    `gorm:"type:text;not null;default:'risk_owner'" json:"roles"`
	IsActive  bool      `gorm:"default:true;not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	WorkUnit  WorkUnit  `gorm:"foreignKey:WorkUnitID" json:"-"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

func (user *User) RoleList() RoleList {
	return ParseRoleList(user.Roles)
}

type AssetCategory struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ac *AssetCategory) BeforeCreate(tx *gorm.DB) (err error) {
	if ac.ID == uuid.Nil {
		ac.ID = uuid.New()
	}
	return
}

// Asset is a unit-owned resource that an assessment item may reference.
type Asset struct {
	ID              uuid.UUID     `gorm:"type:uuid;primary_key;" json:"id"`
	WorkUnitID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"work_unit_id"`
	AssetCategoryID uuid.UUID     `gorm:"type:uuid;not null" json:"asset_category_id"`
	Name            string        `gorm:"size:255;not null" json:"name"`
	Description     string        `gorm:"type:text" json:"description"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	WorkUnit        WorkUnit      `gorm:"foreignKey:WorkUnitID" json:"-"`
	AssetCategory   AssetCategory `gorm:"foreignKey:AssetCategoryID" json:"-"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// RiskContext (konteks) is the versioned configuration bundle: matrix size,
// categories, scales, appetite. At most one context is ACTIVE system-wide;
// that invariant is enforced inside the activation transaction, not here.
type RiskContext struct {
	ID                uuid.UUID     `gorm:"type:uuid;primary_key;" json:"id"`
	Name              string        `gorm:"size:255;not null" json:"name"`
	Code              string        `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Description       string        `gorm:"type:text" json:"description"`
	PeriodStart       time.Time     `json:"period_start"`
	PeriodEnd         time.Time     `json:"period_end"`
	MatrixSize        int           `gorm:"not null" json:"matrix_size"`
	RiskAppetiteLevel RiskLevel     `gorm:"type:varchar(20)" json:"risk_appetite_level"`
	Status            ContextStatus `gorm:"type:varchar(20);not null;default:'INACTIVE'" json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	Categories  []RiskCategory   `gorm:"foreignKey:RiskContextID" json:"categories,omitempty"`
	MatrixCells []RiskMatrixCell `gorm:"foreignKey:RiskContextID" json:"matrix_cells,omitempty"`
}

func (rc *RiskContext) BeforeCreate(tx *gorm.DB) (err error) {
	if rc.ID == uuid.Nil {
		rc.ID = uuid.New()
	}
	return
}

type RiskCategory struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	RiskContextID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_category_context_name,priority:1" json:"risk_context_id"`
	Name          string    `gorm:"size:255;not null;uniqueIndex:idx_category_context_name,priority:2" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	SortOrder     int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	LikelihoodScales []LikelihoodScale `gorm:"foreignKey:RiskCategoryID" json:"likelihood_scales,omitempty"`
	ImpactScales     []ImpactScale     `gorm:"foreignKey:RiskCategoryID" json:"impact_scales,omitempty"`
}

func (rc *RiskCategory) BeforeCreate(tx *gorm.DB) (err error) {
	if rc.ID == uuid.Nil {
		rc.ID = uuid.New()
	}
	return
}

// LikelihoodScale describes one level (1..matrixSize) of likelihood for a
// category. Exactly matrixSize rows must exist per category before the owning
// context can activate.
type LikelihoodScale struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	RiskCategoryID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_likelihood_category_level,priority:1" json:"risk_category_id"`
	Level          int       `gorm:"not null;uniqueIndex:idx_likelihood_category_level,priority:2" json:"level"`
	Label          string    `gorm:"size:255;not null" json:"label"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ls *LikelihoodScale) BeforeCreate(tx *gorm.DB) (err error) {
	if ls.ID == uuid.Nil {
		ls.ID = uuid.New()
	}
	return
}

type ImpactScale struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	RiskCategoryID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_impact_category_level,priority:1" json:"risk_category_id"`
	Level          int       `gorm:"not null;uniqueIndex:idx_impact_category_level,priority:2" json:"level"`
	Label          string    `gorm:"size:255;not null" json:"label"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (is *ImpactScale) BeforeCreate(tx *gorm.DB) (err error) {
	if is.ID == uuid.Nil {
		is.ID = uuid.New()
	}
	return
}

// RiskMatrixCell maps one (likelihood, impact) pair of a context to a risk
// level. Activation requires the full matrixSize² grid.
type RiskMatrixCell struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	RiskContextID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_cell_context_pair,priority:1" json:"risk_context_id"`
	LikelihoodLevel int       `gorm:"not null;uniqueIndex:idx_cell_context_pair,priority:2" json:"likelihood_level"`
	ImpactLevel     int       `gorm:"not null;uniqueIndex:idx_cell_context_pair,priority:3" json:"impact_level"`
	RiskLevel       RiskLevel `gorm:"type:varchar(20);not null" json:"risk_level"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c *RiskMatrixCell) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// RiskWorksheet is the top-level container per (work unit, context).
// ItemSeq and AssessmentSeq back the R001/A001 code generators; they only
// ever grow, so codes are never reused even after deletion.
type RiskWorksheet struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	WorkUnitID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_worksheet_unit_context_name,priority:1" json:"work_unit_id"`
	RiskContextID uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_worksheet_unit_context_name,priority:2" json:"risk_context_id"`
	Name          string          `gorm:"size:255;not null;uniqueIndex:idx_worksheet_unit_context_name,priority:3" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	OwnerID       uuid.UUID       `gorm:"type:uuid;not null" json:"owner_id"`
	Status        WorksheetStatus `gorm:"type:varchar(20);not null;default:'DRAFT'" json:"status"`
	ItemSeq       int             `gorm:"not null;default:0" json:"-"`
	AssessmentSeq int             `gorm:"not null;default:0" json:"-"`

	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy     *uuid.UUID `gorm:"type:uuid" json:"submitted_by,omitempty"`
	SubmissionNotes string     `gorm:"type:text" json:"submission_notes,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy      *uuid.UUID `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewNotes     string     `gorm:"type:text" json:"review_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner       User                 `gorm:"foreignKey:OwnerID" json:"-"`
	RiskContext RiskContext          `gorm:"foreignKey:RiskContextID" json:"-"`
	Items       []RiskAssessmentItem `gorm:"foreignKey:RiskWorksheetID" json:"items,omitempty"`
	Assessments []RiskAssessment     `gorm:"foreignKey:RiskWorksheetID" json:"assessments,omitempty"`
}

func (w *RiskWorksheet) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return
}

// RiskAssessment is a named evaluation pass nested under a worksheet, with its
// own approval machine (rejection does not auto-revert to DRAFT).
type RiskAssessment struct {
	ID              uuid.UUID        `gorm:"type:uuid;primary_key;" json:"id"`
	RiskWorksheetID uuid.UUID        `gorm:"type:uuid;not null;index;uniqueIndex:idx_assessment_worksheet_code,priority:1" json:"risk_worksheet_id"`
	Code            string           `gorm:"size:20;not null;uniqueIndex:idx_assessment_worksheet_code,priority:2" json:"code"`
	Name            string           `gorm:"size:255;not null" json:"name"`
	Description     string           `gorm:"type:text" json:"description"`
	OwnerID         uuid.UUID        `gorm:"type:uuid;not null" json:"owner_id"`
	Status          AssessmentStatus `gorm:"type:varchar(20);not null;default:'DRAFT'" json:"status"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy *uuid.UUID `gorm:"type:uuid" json:"submitted_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *uuid.UUID `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewNotes string     `gorm:"type:text" json:"review_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Worksheet RiskWorksheet `gorm:"foreignKey:RiskWorksheetID" json:"-"`
}

func (ra *RiskAssessment) BeforeCreate(tx *gorm.DB) (err error) {
	if ra.ID == uuid.Nil {
		ra.ID = uuid.New()
	}
	return
}

// RiskAssessmentItem is one identified risk: inherent and residual scores plus
// the derived risk levels, which are recomputed on every score change and
// never stored stale.
type RiskAssessmentItem struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	RiskWorksheetID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_item_worksheet_code,priority:1" json:"risk_worksheet_id"`
	RiskAssessmentID *uuid.UUID `gorm:"type:uuid;index" json:"risk_assessment_id,omitempty"`
	RiskCategoryID   uuid.UUID  `gorm:"type:uuid;not null" json:"risk_category_id"`
	AssetID          *uuid.UUID `gorm:"type:uuid" json:"asset_id,omitempty"`
	Code             string     `gorm:"size:20;not null;uniqueIndex:idx_item_worksheet_code,priority:2" json:"code"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`

	InherentLikelihood int       `gorm:"not null" json:"inherent_likelihood"`
	InherentImpact     int       `gorm:"not null" json:"inherent_impact"`
	InherentRiskLevel  RiskLevel `gorm:"type:varchar(20)" json:"inherent_risk_level"`
	ResidualLikelihood int       `gorm:"not null" json:"residual_likelihood"`
	ResidualImpact     int       `gorm:"not null" json:"residual_impact"`
	ResidualRiskLevel  RiskLevel `gorm:"type:varchar(20)" json:"residual_risk_level"`

	TreatmentOption    TreatmentOption `gorm:"type:varchar(20)" json:"treatment_option"`
	TreatmentRationale string          `gorm:"type:text" json:"treatment_rationale"`
	MitigationSeq      int             `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Worksheet    RiskWorksheet    `gorm:"foreignKey:RiskWorksheetID" json:"-"`
	RiskCategory RiskCategory     `gorm:"foreignKey:RiskCategoryID" json:"-"`
	Mitigations  []RiskMitigation `gorm:"foreignKey:RiskAssessmentItemID" json:"mitigations,omitempty"`
}

func (item *RiskAssessmentItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return
}

// RiskMitigation is a remediation action for an item. Once IsValidated flips
// to true the record is immutable; rejection only records notes and leaves it
// open for further owner edits.
type RiskMitigation struct {
	ID                   uuid.UUID          `gorm:"type:uuid;primary_key;" json:"id"`
	RiskAssessmentItemID uuid.UUID          `gorm:"type:uuid;not null;index;uniqueIndex:idx_mitigation_item_code,priority:1" json:"risk_assessment_item_id"`
	Code                 string             `gorm:"size:20;not null;uniqueIndex:idx_mitigation_item_code,priority:2" json:"code"`
	ActionPlan           string             `gorm:"type:text;not null" json:"action_plan"`
	PIC                  string             `gorm:"size:255" json:"pic"`
	Status               MitigationStatus   `gorm:"type:varchar(20);not null;default:'PLANNED'" json:"status"`
	Priority             MitigationPriority `gorm:"type:varchar(20);not null;default:'MEDIUM'" json:"priority"`

	PlannedStart *time.Time `json:"planned_start,omitempty"`
	PlannedEnd   *time.Time `json:"planned_end,omitempty"`
	ActualStart  *time.Time `json:"actual_start,omitempty"`
	ActualEnd    *time.Time `json:"actual_end,omitempty"`

	IsValidated     bool       `gorm:"not null;default:false" json:"is_validated"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
	ValidatedBy     *uuid.UUID `gorm:"type:uuid" json:"validated_by,omitempty"`
	ValidationNotes string     `gorm:"type:text" json:"validation_notes,omitempty"`
	RejectionNotes  string     `gorm:"type:text" json:"rejection_notes,omitempty"`

	EvidenceObjectKey string `gorm:"size:1024" json:"evidence_object_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Item RiskAssessmentItem `gorm:"foreignKey:RiskAssessmentItemID" json:"-"`
}

func (m *RiskMitigation) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}

// AutoMigrateDB automatically migrates the schema
func AutoMigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&WorkUnit{},
		&User{},
		&AssetCategory{},
		&Asset{},
		&RiskContext{},
		&RiskCategory{},
		&LikelihoodScale{},
		&ImpactScale{},
		&RiskMatrixCell{},
		&RiskWorksheet{},
		&RiskAssessment{},
		&RiskAssessmentItem{},
		&RiskMitigation{},
	)
}
