package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/services"
	"github.com/teamflow-dev/teamflow/internal/types"
	"github.com/teamflow-dev/teamflow/internal/utils"
	"gorm.io/gorm"
)

type WorkspaceHandler struct {
	db       *gorm.DB
	authz    *authz.Authorizer
	notifier *services.Notifier
}

func NewWorkspaceHandler(conn *gorm.DB, az *authz.Authorizer, notifier *services.Notifier) *WorkspaceHandler {
	return &WorkspaceHandler{db: conn, authz: az, notifier: notifier}
}

type CreateWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type TransferOwnershipRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

type WorkspaceResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     uint   `json:"owner_id"`
}

type MemberResponse struct {
	WorkspaceID uint               `json:"workspace_id"`
	UserID      uint               `json:"user_id"`
	Role        string             `json:"role"`
	User        types.UserResponse `json:"user"`
}

func workspaceResponse(workspace *models.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:          workspace.ID,
		Name:        workspace.Name,
		Description: workspace.Description,
		OwnerID:     workspace.OwnerID,
	}
}

// Create makes the workspace and its single OWNER membership in one
// transaction, so a workspace can never exist without exactly one owner.
func (h *WorkspaceHandler) Create(ctx *gin.Context) {
	var body CreateWorkspaceRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspace := models.Workspace{
		Name:        body.Name,
		Description: body.Description,
		OwnerID:     userID,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workspace).Error; err != nil {
			return err
		}

		member := models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      userID,
			Role:        string(authz.RoleOwner),
		}

		return tx.Create(&member).Error
	})

	if err != nil {
		log.Printf("Failed to create workspace: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusCreated, workspaceResponse(&workspace))
}

func (h *WorkspaceHandler) List(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var workspaces []models.Workspace

	err = h.db.
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ? AND workspace_members.deleted_at IS NULL", userID).
		Find(&workspaces).Error
	if err != nil {
		log.Printf("Failed to list workspaces: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]WorkspaceResponse, 0, len(workspaces))

	for i := range workspaces {
		response = append(response, workspaceResponse(&workspaces[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *WorkspaceHandler) Get(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionView); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	var workspace models.Workspace

	if err := h.db.First(&workspace, workspaceID).Error; err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	ctx.JSON(http.StatusOK, workspaceResponse(&workspace))
}

func (h *WorkspaceHandler) Update(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body UpdateWorkspaceRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionEdit); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	var workspace models.Workspace

	if err := h.db.First(&workspace, workspaceID).Error; err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	workspace.Name = body.Name
	workspace.Description = body.Description

	if err := h.db.Save(&workspace).Error; err != nil {
		log.Printf("Failed to update workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, workspaceResponse(&workspace))
}

func (h *WorkspaceHandler) Delete(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionDeleteWorkspace); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	// The whole subtree goes in one transaction. Soft deletes never fire
	// the FK cascades, and membership checks only consult workspace_members,
	// so anything left behind would stay reachable by former members.
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var projectIDs []uint

		err := tx.Model(&models.Project{}).Where("workspace_id = ?", workspaceID).
			Pluck("id", &projectIDs).Error
		if err != nil {
			return err
		}

		if len(projectIDs) > 0 {
			var taskIDs []uint

			err := tx.Model(&models.Task{}).Where("project_id IN ?", projectIDs).
				Pluck("id", &taskIDs).Error
			if err != nil {
				return err
			}

			if len(taskIDs) > 0 {
				if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TaskComment{}).Error; err != nil {
					return err
				}

				if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TaskAttachment{}).Error; err != nil {
					return err
				}

				if err := tx.Where("id IN ?", taskIDs).Delete(&models.Task{}).Error; err != nil {
					return err
				}
			}

			if err := tx.Where("id IN ?", projectIDs).Delete(&models.Project{}).Error; err != nil {
				return err
			}
		}

		var eventIDs []uint

		err = tx.Model(&models.Event{}).Where("workspace_id = ?", workspaceID).
			Pluck("id", &eventIDs).Error
		if err != nil {
			return err
		}

		if len(eventIDs) > 0 {
			if err := tx.Where("event_id IN ?", eventIDs).Delete(&models.EventAttendee{}).Error; err != nil {
				return err
			}

			if err := tx.Where("id IN ?", eventIDs).Delete(&models.Event{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Workspace{}, workspaceID).Error
	})

	if err != nil {
		log.Printf("Failed to delete workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *WorkspaceHandler) ListMembers(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionView); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	var members []models.WorkspaceMember

	if err := h.db.Preload("User").Where("workspace_id = ?", workspaceID).Find(&members).Error; err != nil {
		log.Printf("Failed to list members of workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]MemberResponse, 0, len(members))

	for _, member := range members {
		response = append(response, MemberResponse{
			WorkspaceID: member.WorkspaceID,
			UserID:      member.UserID,
			Role:        member.Role,
			User: types.UserResponse{
				ID:    member.User.ID,
				Name:  member.User.Name,
				Email: member.User.Email,
			},
		})
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *WorkspaceHandler) AddMember(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body AddMemberRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	role := authz.Role(strings.ToUpper(body.Role))

	if !authz.ValidRole(role) || role == authz.RoleOwner {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Role must be ADMIN, MEMBER or VIEWER"})
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionManageMembers); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	var user models.User

	if err := h.db.Where("email = ?", strings.ToLower(strings.TrimSpace(body.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Printf("Failed to look up user by email: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	member := models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      user.ID,
		Role:        string(role),
	}

	if err := h.db.Create(&member).Error; err != nil {
		// The composite unique index rejects concurrent duplicates too.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "User is already a member"})
			return
		}
		log.Printf("Failed to add member to workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.notifier.Notify(user.ID, "Added to workspace",
		"You have been added to a workspace", models.NotificationMemberAdded,
		workspaceID, map[string]interface{}{"role": string(role)})

	ctx.JSON(http.StatusCreated, MemberResponse{
		WorkspaceID: member.WorkspaceID,
		UserID:      member.UserID,
		Role:        member.Role,
		User: types.UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
		},
	})
}

func (h *WorkspaceHandler) UpdateMemberRole(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	targetID, err := utils.ParamUint(ctx, "user_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateMemberRoleRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	role := authz.Role(strings.ToUpper(body.Role))

	if !authz.ValidRole(role) || role == authz.RoleOwner {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Role must be ADMIN, MEMBER or VIEWER"})
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionManageMembers); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	target, err := h.authz.ResolveMembership(targetID, workspaceID)

	if err != nil {
		respondAccessError(ctx, err, "Member")
		return
	}

	if target.Role == string(authz.RoleOwner) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Ownership changes go through transfer-ownership"})
		return
	}

	target.Role = string(role)

	if err := h.db.Save(target).Error; err != nil {
		log.Printf("Failed to update member role in workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Member role updated"})
}

func (h *WorkspaceHandler) RemoveMember(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	targetID, err := utils.ParamUint(ctx, "user_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionManageMembers); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	target, err := h.authz.ResolveMembership(targetID, workspaceID)

	if err != nil {
		respondAccessError(ctx, err, "Member")
		return
	}

	if target.Role == string(authz.RoleOwner) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "The workspace owner cannot be removed"})
		return
	}

	if err := h.db.Delete(target).Error; err != nil {
		log.Printf("Failed to remove member from workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

// TransferOwnership atomically swaps the OWNER role to another member so
// the workspace keeps exactly one owner. The outgoing owner is demoted to
// ADMIN.
func (h *WorkspaceHandler) TransferOwnership(ctx *gin.Context) {
	userID, workspaceID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body TransferOwnershipRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	caller, err := h.authz.Require(userID, workspaceID, authz.ActionDeleteWorkspace)

	if err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	if body.UserID == userID {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "You already own this workspace"})
		return
	}

	target, err := h.authz.ResolveMembership(body.UserID, workspaceID)

	if err != nil {
		respondAccessError(ctx, err, "Member")
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.WorkspaceMember{}).Where("id = ?", target.ID).
			Update("role", string(authz.RoleOwner)).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.WorkspaceMember{}).Where("id = ?", caller.ID).
			Update("role", string(authz.RoleAdmin)).Error; err != nil {
			return err
		}

		return tx.Model(&models.Workspace{}).Where("id = ?", workspaceID).
			Update("owner_id", target.UserID).Error
	})

	if err != nil {
		log.Printf("Failed to transfer ownership of workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Ownership transferred"})
}

// identify reads the caller and the workspace_id parameter, writing the
// error response itself when either is missing.
func (h *WorkspaceHandler) identify(ctx *gin.Context) (userID, workspaceID uint, ok bool) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, 0, false
	}

	workspaceID, err = utils.ParamUint(ctx, "workspace_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}

	return userID, workspaceID, true
}
