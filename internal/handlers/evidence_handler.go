package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/filestorage"
	"satriarisk/backend/internal/workflow"
	"satriarisk/backend/pkg/features"

	"github.com/gin-gonic/gin"
)

// signedURLTTLMinutes is how long an evidence download link stays valid.
const signedURLTTLMinutes = 15

// evidenceEnabled checks the feature toggle and the storage backend. Both
// are required; a toggle without a configured provider is still disabled.
func evidenceEnabled(c *gin.Context) bool {
	if !features.IsEnabled(features.EvidenceUpload) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Evidence uploads are not enabled"})
		return false
	}
	if filestorage.DefaultProvider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Evidence storage is not configured"})
		return false
	}
	return true
}

// UploadEvidenceHandler attaches an evidence file to a mitigation. The
// object key is derived from the mitigation ID, so a re-upload replaces the
// previous file.
func UploadEvidenceHandler(c *gin.Context) {
	if !evidenceEnabled(c) {
		return
	}
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}

	db := database.GetDB()
	scope := loadMitigationScope(c, db, true)
	if scope == nil {
		return
	}
	if !actor.IsOwner(scope.Worksheet.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can upload evidence"})
		return
	}
	if !workflow.WorksheetMutable(scope.Worksheet.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Evidence can only be uploaded while the worksheet is DRAFT"})
		return
	}
	if scope.Mitigation.IsValidated {
		c.JSON(http.StatusForbidden, gin.H{"error": "A validated mitigation cannot be modified"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A 'file' form field is required"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	objectKey := fmt.Sprintf("evidence/%s/%s%s",
		scope.Worksheet.ID, scope.Mitigation.ID, filepath.Ext(fileHeader.Filename))
	storedKey, err := filestorage.DefaultProvider.UploadFile(c.Request.Context(), objectKey, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store evidence: " + err.Error()})
		return
	}

	scope.Mitigation.EvidenceObjectKey = storedKey
	if err := db.Save(scope.Mitigation).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record evidence key: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, scope.Mitigation)
}

// GetEvidenceURLHandler returns a short-lived signed download URL for the
// mitigation's evidence object.
func GetEvidenceURLHandler(c *gin.Context) {
	if !evidenceEnabled(c) {
		return
	}

	db := database.GetDB()
	scope := loadMitigationScope(c, db, true)
	if scope == nil {
		return
	}
	if scope.Mitigation.EvidenceObjectKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Mitigation has no evidence attached"})
		return
	}

	url, err := filestorage.DefaultProvider.GetSignedURL(c.Request.Context(), scope.Mitigation.EvidenceObjectKey, signedURLTTLMinutes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign evidence URL: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in_minutes": signedURLTTLMinutes})
}
