package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/types"
	"github.com/teamflow-dev/teamflow/internal/utils"
)

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type CommentResponse struct {
	ID      uint               `json:"id"`
	TaskID  uint               `json:"task_id"`
	Content string             `json:"content"`
	Author  types.UserResponse `json:"author"`
}

func (h *TaskHandler) CreateComment(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body CreateCommentRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionCreate)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	comment := models.TaskComment{
		TaskID:  task.ID,
		UserID:  userID,
		Content: body.Content,
	}

	if err := h.db.Create(&comment).Error; err != nil {
		log.Printf("Failed to create comment on task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	currentUser, _ := utils.GetCurrentUser(ctx)

	ctx.JSON(http.StatusCreated, CommentResponse{
		ID:      comment.ID,
		TaskID:  comment.TaskID,
		Content: comment.Content,
		Author: types.UserResponse{
			ID:    currentUser.ID,
			Name:  currentUser.Name,
			Email: currentUser.Email,
		},
	})
}

func (h *TaskHandler) ListComments(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	if _, _, err := h.authz.RequireForTask(userID, taskID, authz.ActionView); err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	var comments []models.TaskComment

	err := h.db.Preload("User").Where("task_id = ?", taskID).
		Order("created_at").Find(&comments).Error
	if err != nil {
		log.Printf("Failed to list comments on task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]CommentResponse, 0, len(comments))

	for _, comment := range comments {
		response = append(response, CommentResponse{
			ID:      comment.ID,
			TaskID:  comment.TaskID,
			Content: comment.Content,
			Author: types.UserResponse{
				ID:    comment.User.ID,
				Name:  comment.User.Name,
				Email: comment.User.Email,
			},
		})
	}

	ctx.JSON(http.StatusOK, response)
}

// DeleteComment lets the author remove their own comment; anyone else needs
// DELETE rights in the workspace.
func (h *TaskHandler) DeleteComment(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	commentID, err := utils.ParamUint(ctx, "comment_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var comment models.TaskComment

	if err := h.db.Where("id = ? AND task_id = ?", commentID, taskID).First(&comment).Error; err != nil {
		respondAccessError(ctx, err, "Comment")
		return
	}

	action := authz.ActionView

	if comment.UserID != userID {
		action = authz.ActionDelete
	}

	if _, _, err := h.authz.RequireForTask(userID, taskID, action); err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	if err := h.db.Delete(&comment).Error; err != nil {
		log.Printf("Failed to delete comment %d: %v", commentID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
