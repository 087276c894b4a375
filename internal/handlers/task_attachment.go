package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/utils"
)

// Attachment handlers track file metadata only; the bytes live in whatever
// object store the deployment points file_url at.

type CreateAttachmentRequest struct {
	FileName string `json:"file_name" binding:"required"`
	FileURL  string `json:"file_url" binding:"required,url"`
	FileSize int64  `json:"file_size" binding:"required,min=1"`
	MimeType string `json:"mime_type"`
}

type AttachmentResponse struct {
	ID         uint   `json:"id"`
	TaskID     uint   `json:"task_id"`
	FileName   string `json:"file_name"`
	FileURL    string `json:"file_url"`
	FileSize   int64  `json:"file_size"`
	MimeType   string `json:"mime_type"`
	UploaderID uint   `json:"uploader_id"`
}

func attachmentResponse(attachment *models.TaskAttachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         attachment.ID,
		TaskID:     attachment.TaskID,
		FileName:   attachment.FileName,
		FileURL:    attachment.FileURL,
		FileSize:   attachment.FileSize,
		MimeType:   attachment.MimeType,
		UploaderID: attachment.UploaderID,
	}
}

func (h *TaskHandler) CreateAttachment(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body CreateAttachmentRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionCreate)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	attachment := models.TaskAttachment{
		TaskID:     task.ID,
		FileName:   body.FileName,
		FileURL:    body.FileURL,
		FileSize:   body.FileSize,
		MimeType:   body.MimeType,
		UploaderID: userID,
	}

	if err := h.db.Create(&attachment).Error; err != nil {
		log.Printf("Failed to create attachment on task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusCreated, attachmentResponse(&attachment))
}

func (h *TaskHandler) ListAttachments(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	if _, _, err := h.authz.RequireForTask(userID, taskID, authz.ActionView); err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	var attachments []models.TaskAttachment

	if err := h.db.Where("task_id = ?", taskID).Find(&attachments).Error; err != nil {
		log.Printf("Failed to list attachments on task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]AttachmentResponse, 0, len(attachments))

	for i := range attachments {
		response = append(response, attachmentResponse(&attachments[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *TaskHandler) DeleteAttachment(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	attachmentID, err := utils.ParamUint(ctx, "attachment_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var attachment models.TaskAttachment

	if err := h.db.Where("id = ? AND task_id = ?", attachmentID, taskID).First(&attachment).Error; err != nil {
		respondAccessError(ctx, err, "Attachment")
		return
	}

	action := authz.ActionView

	if attachment.UploaderID != userID {
		action = authz.ActionDelete
	}

	if _, _, err := h.authz.RequireForTask(userID, taskID, action); err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	if err := h.db.Delete(&attachment).Error; err != nil {
		log.Printf("Failed to delete attachment %d: %v", attachmentID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
