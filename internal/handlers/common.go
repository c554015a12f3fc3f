package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"satriarisk/backend/internal/riskmatrix"
	"satriarisk/backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PaginatedResponse is a generic struct for paginated API responses.
type PaginatedResponse struct {
	Items      interface{} `json:"items"`
	TotalItems int64       `json:"total_items"`
	TotalPages int64       `json:"total_pages"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

// GetPaginationParams extracts and validates pagination parameters from the request.
func GetPaginationParams(c *gin.Context) (page int, pageSize int) {
	pageQuery := c.DefaultQuery("page", strconv.Itoa(DefaultPage))
	pageSizeQuery := c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize))

	page, err := strconv.Atoi(pageQuery)
	if err != nil || page < 1 {
		page = DefaultPage
	}

	pageSize, err = strconv.Atoi(pageSizeQuery)
	if err != nil || pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// PaginateScope returns a GORM scope function to apply pagination.
func PaginateScope(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		offset := (page - 1) * pageSize
		return db.Offset(offset).Limit(pageSize)
	}
}

// NewPaginatedResponse assembles the standard list envelope.
func NewPaginatedResponse(items interface{}, totalItems int64, page, pageSize int) PaginatedResponse {
	totalPages := totalItems / int64(pageSize)
	if totalItems%int64(pageSize) != 0 {
		totalPages++
	}
	return PaginatedResponse{
		Items:      items,
		TotalItems: totalItems,
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
	}
}

// respondWorkflowError maps core error types onto the fixed status families:
// illegal transitions are 403, matrix/appetite violations are 400. Returns
// false when the error was not one of the core types.
func respondWorkflowError(c *gin.Context, err error) bool {
	var illegal *workflow.ErrIllegalTransition
	if errors.As(err, &illegal) {
		c.JSON(http.StatusForbidden, gin.H{"error": illegal.Error()})
		return true
	}
	var uncovered *riskmatrix.ErrUncoveredCombination
	if errors.As(err, &uncovered) {
		c.JSON(http.StatusBadRequest, gin.H{"error": uncovered.Error()})
		return true
	}
	var notAllowed *riskmatrix.ErrTreatmentNotAllowed
	if errors.As(err, &notAllowed) {
		c.JSON(http.StatusBadRequest, gin.H{"error": notAllowed.Error()})
		return true
	}
	return false
}
