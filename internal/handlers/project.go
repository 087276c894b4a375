package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/utils"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db    *gorm.DB
	authz *authz.Authorizer
}

func NewProjectHandler(conn *gorm.DB, az *authz.Authorizer) *ProjectHandler {
	return &ProjectHandler{db: conn, authz: az}
}

type CreateProjectRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type UpdateProjectRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type ProjectResponse struct {
	ID          uint       `json:"id"`
	WorkspaceID uint       `json:"workspace_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	CreatorID   uint       `json:"creator_id"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func projectResponse(project *models.Project) ProjectResponse {
	return ProjectResponse{
		ID:          project.ID,
		WorkspaceID: project.WorkspaceID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		CreatorID:   project.CreatorID,
		StartDate:   project.StartDate,
		EndDate:     project.EndDate,
	}
}

func (h *ProjectHandler) Create(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := utils.ParamUint(ctx, "workspace_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body CreateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionCreate); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	project := models.Project{
		WorkspaceID: workspaceID,
		Name:        body.Name,
		Description: body.Description,
		Status:      models.ProjectStatusActive,
		CreatorID:   userID,
		StartDate:   body.StartDate,
		EndDate:     body.EndDate,
	}

	if err := h.db.Create(&project).Error; err != nil {
		log.Printf("Failed to create project in workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusCreated, projectResponse(&project))
}

func (h *ProjectHandler) List(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	workspaceID, err := utils.ParamUint(ctx, "workspace_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionView); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	var projects []models.Project

	if err := h.db.Where("workspace_id = ?", workspaceID).Find(&projects).Error; err != nil {
		log.Printf("Failed to list projects in workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]ProjectResponse, 0, len(projects))

	for i := range projects {
		response = append(response, projectResponse(&projects[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *ProjectHandler) Get(ctx *gin.Context) {
	userID, projectID, ok := h.identify(ctx)
	if !ok {
		return
	}

	_, project, err := h.authz.RequireForProject(userID, projectID, authz.ActionView)

	if err != nil {
		respondAccessError(ctx, err, "Project")
		return
	}

	ctx.JSON(http.StatusOK, projectResponse(project))
}

func (h *ProjectHandler) Update(ctx *gin.Context) {
	userID, projectID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body UpdateProjectRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if body.Status != "" && !models.ValidProjectStatus(body.Status) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Status must be ACTIVE, ARCHIVED or COMPLETED"})
		return
	}

	_, project, err := h.authz.RequireForProject(userID, projectID, authz.ActionEdit)

	if err != nil {
		respondAccessError(ctx, err, "Project")
		return
	}

	project.Name = body.Name
	project.Description = body.Description
	project.StartDate = body.StartDate
	project.EndDate = body.EndDate

	if body.Status != "" {
		project.Status = body.Status
	}

	if err := h.db.Save(project).Error; err != nil {
		log.Printf("Failed to update project %d: %v", projectID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, projectResponse(project))
}

func (h *ProjectHandler) Delete(ctx *gin.Context) {
	userID, projectID, ok := h.identify(ctx)
	if !ok {
		return
	}

	_, project, err := h.authz.RequireForProject(userID, projectID, authz.ActionDelete)

	if err != nil {
		respondAccessError(ctx, err, "Project")
		return
	}

	if err := h.db.Delete(project).Error; err != nil {
		log.Printf("Failed to delete project %d: %v", projectID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ProjectHandler) identify(ctx *gin.Context) (userID, projectID uint, ok bool) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, 0, false
	}

	projectID, err = utils.ParamUint(ctx, "project_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}

	return userID, projectID, true
}
