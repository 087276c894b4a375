package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/realtime"
	"github.com/teamflow-dev/teamflow/internal/services"
	"github.com/teamflow-dev/teamflow/internal/utils"
	"gorm.io/gorm"
)

var errPositionConflict = errors.New("task position changed concurrently")

type TaskHandler struct {
	db       *gorm.DB
	authz    *authz.Authorizer
	notifier *services.Notifier
	hub      *realtime.Hub
}

func NewTaskHandler(conn *gorm.DB, az *authz.Authorizer, notifier *services.Notifier, hub *realtime.Hub) *TaskHandler {
	return &TaskHandler{db: conn, authz: az, notifier: notifier, hub: hub}
}

type CreateTaskRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	AssigneeID   *uint      `json:"assignee_id"`
	ParentTaskID *uint      `json:"parent_task_id"`
	DueDate      *time.Time `json:"due_date"`
}

type UpdateTaskRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	AssigneeID   *uint      `json:"assignee_id"`
	ParentTaskID *uint      `json:"parent_task_id"`
	DueDate      *time.Time `json:"due_date"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// MoveTaskRequest carries the optimistic concurrency token: the position
// the client last saw. If the task has moved since, the write is rejected
// with a conflict instead of silently clobbering another client's ordering.
type MoveTaskRequest struct {
	Position         int `json:"position" binding:"required,min=1"`
	ExpectedPosition int `json:"expected_position" binding:"required,min=1"`
}

type TaskResponse struct {
	ID           uint       `json:"id"`
	ProjectID    uint       `json:"project_id"`
	ParentTaskID *uint      `json:"parent_task_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	AssigneeID   *uint      `json:"assignee_id"`
	CreatorID    uint       `json:"creator_id"`
	DueDate      *time.Time `json:"due_date"`
	Position     int        `json:"position"`
}

func taskResponse(task *models.Task) TaskResponse {
	return TaskResponse{
		ID:           task.ID,
		ProjectID:    task.ProjectID,
		ParentTaskID: task.ParentTaskID,
		Title:        task.Title,
		Description:  task.Description,
		Status:       task.Status,
		Priority:     task.Priority,
		AssigneeID:   task.AssigneeID,
		CreatorID:    task.CreatorID,
		DueDate:      task.DueDate,
		Position:     task.Position,
	}
}

func (h *TaskHandler) Create(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.ParamUint(ctx, "project_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body CreateTaskRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	priority := body.Priority

	if priority == "" {
		priority = models.TaskPriorityMedium
	}

	if !models.ValidTaskPriority(priority) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Priority must be LOW, MEDIUM or HIGH"})
		return
	}

	member, project, err := h.authz.RequireForProject(userID, projectID, authz.ActionCreate)

	if err != nil {
		respondAccessError(ctx, err, "Project")
		return
	}

	if body.ParentTaskID != nil {
		var parent models.Task

		if err := h.db.First(&parent, *body.ParentTaskID).Error; err != nil {
			respondAccessError(ctx, err, "Parent task")
			return
		}

		if parent.ProjectID != project.ID {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Parent task must belong to the same project"})
			return
		}
	}

	if body.AssigneeID != nil {
		if _, err := h.authz.ResolveMembership(*body.AssigneeID, member.WorkspaceID); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Assignee is not a workspace member"})
			return
		}
	}

	task := models.Task{
		ProjectID:    project.ID,
		ParentTaskID: body.ParentTaskID,
		Title:        body.Title,
		Description:  body.Description,
		Status:       models.TaskStatusTodo,
		Priority:     priority,
		AssigneeID:   body.AssigneeID,
		CreatorID:    userID,
		DueDate:      body.DueDate,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var maxPosition int

		err := siblingScope(tx.Model(&models.Task{}), project.ID, body.ParentTaskID).
			Select("COALESCE(MAX(position), 0)").Scan(&maxPosition).Error
		if err != nil {
			return err
		}

		task.Position = maxPosition + 1

		return tx.Create(&task).Error
	})

	if err != nil {
		log.Printf("Failed to create task in project %d: %v", project.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if task.AssigneeID != nil && *task.AssigneeID != userID {
		h.notifier.Notify(*task.AssigneeID, "Task assigned to you", task.Title,
			models.NotificationTaskAssigned, task.ID,
			map[string]interface{}{"project_id": task.ProjectID})
	}

	h.hub.BroadcastRefresh(task.ProjectID)

	ctx.JSON(http.StatusCreated, taskResponse(&task))
}

func (h *TaskHandler) List(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.ParamUint(ctx, "project_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, _, err := h.authz.RequireForProject(userID, projectID, authz.ActionView); err != nil {
		respondAccessError(ctx, err, "Project")
		return
	}

	var tasks []models.Task

	err = h.db.Where("project_id = ?", projectID).
		Order("parent_task_id, position").Find(&tasks).Error
	if err != nil {
		log.Printf("Failed to list tasks in project %d: %v", projectID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]TaskResponse, 0, len(tasks))

	for i := range tasks {
		response = append(response, taskResponse(&tasks[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *TaskHandler) Get(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	_, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionView)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	ctx.JSON(http.StatusOK, taskResponse(task))
}

func (h *TaskHandler) Update(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body UpdateTaskRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if body.Priority != "" && !models.ValidTaskPriority(body.Priority) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Priority must be LOW, MEDIUM or HIGH"})
		return
	}

	member, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionEdit)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	reparented := !sameParent(task.ParentTaskID, body.ParentTaskID)

	if reparented && body.ParentTaskID != nil {
		var parent models.Task

		if err := h.db.First(&parent, *body.ParentTaskID).Error; err != nil {
			respondAccessError(ctx, err, "Parent task")
			return
		}

		if parent.ProjectID != task.ProjectID {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Parent task must belong to the same project"})
			return
		}

		cycle, err := h.wouldCycle(task.ID, *body.ParentTaskID)

		if err != nil {
			log.Printf("Failed to validate task hierarchy for task %d: %v", taskID, err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if cycle {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "A task cannot be nested under itself"})
			return
		}
	}

	if body.AssigneeID != nil {
		if _, err := h.authz.ResolveMembership(*body.AssigneeID, member.WorkspaceID); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Assignee is not a workspace member"})
			return
		}
	}

	assigneeChanged := body.AssigneeID != nil &&
		(task.AssigneeID == nil || *task.AssigneeID != *body.AssigneeID)

	task.Title = body.Title
	task.Description = body.Description
	task.AssigneeID = body.AssigneeID
	task.DueDate = body.DueDate

	if body.Priority != "" {
		task.Priority = body.Priority
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if reparented {
			// Close the gap in the old sibling group, then append to the
			// end of the new one.
			err := siblingScope(tx.Model(&models.Task{}), task.ProjectID, task.ParentTaskID).
				Where("position > ?", task.Position).
				UpdateColumn("position", gorm.Expr("position - 1")).Error
			if err != nil {
				return err
			}

			var maxPosition int

			err = siblingScope(tx.Model(&models.Task{}), task.ProjectID, body.ParentTaskID).
				Select("COALESCE(MAX(position), 0)").Scan(&maxPosition).Error
			if err != nil {
				return err
			}

			task.ParentTaskID = body.ParentTaskID
			task.Position = maxPosition + 1
		}

		return tx.Save(task).Error
	})

	if err != nil {
		log.Printf("Failed to update task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if assigneeChanged && *task.AssigneeID != userID {
		h.notifier.Notify(*task.AssigneeID, "Task assigned to you", task.Title,
			models.NotificationTaskAssigned, task.ID,
			map[string]interface{}{"project_id": task.ProjectID})
	}

	h.hub.BroadcastRefresh(task.ProjectID)

	ctx.JSON(http.StatusOK, taskResponse(task))
}

// UpdateStatus advances the task through its lifecycle. Re-entering the
// current status is a no-op beyond the timestamp refresh; DONE can only be
// left through Reopen.
func (h *TaskHandler) UpdateStatus(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body UpdateTaskStatusRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionEdit)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	if !models.CanTransition(task.Status, body.Status) {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status transition from " + task.Status + " to " + body.Status,
		})
		return
	}

	task.Status = body.Status

	if err := h.db.Save(task).Error; err != nil {
		log.Printf("Failed to update status of task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.hub.BroadcastRefresh(task.ProjectID)

	ctx.JSON(http.StatusOK, taskResponse(task))
}

// Reopen is the only path from DONE back to TODO.
func (h *TaskHandler) Reopen(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	_, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionEdit)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	if task.Status != models.TaskStatusDone {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Only completed tasks can be reopened"})
		return
	}

	task.Status = models.TaskStatusTodo

	if err := h.db.Save(task).Error; err != nil {
		log.Printf("Failed to reopen task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.hub.BroadcastRefresh(task.ProjectID)

	ctx.JSON(http.StatusOK, taskResponse(task))
}

// Move reorders a task among its siblings. The whole renumbering runs in
// one transaction guarded by an expected-position check, so concurrent
// moves converge to a dense ordering instead of overwriting each other.
func (h *TaskHandler) Move(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body MoveTaskRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionEdit)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		var siblings int64

		err := siblingScope(tx.Model(&models.Task{}), task.ProjectID, task.ParentTaskID).
			Count(&siblings).Error
		if err != nil {
			return err
		}

		newPosition := body.Position

		if newPosition > int(siblings) {
			newPosition = int(siblings)
		}

		// Optimistic claim: the row must still sit where the client saw
		// it. Parking it at 0 keeps it out of the shift below.
		claim := tx.Model(&models.Task{}).
			Where("id = ? AND position = ?", task.ID, body.ExpectedPosition).
			UpdateColumn("position", 0)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return errPositionConflict
		}

		oldPosition := body.ExpectedPosition

		if newPosition > oldPosition {
			err = siblingScope(tx.Model(&models.Task{}), task.ProjectID, task.ParentTaskID).
				Where("position > ? AND position <= ?", oldPosition, newPosition).
				UpdateColumn("position", gorm.Expr("position - 1")).Error
		} else if newPosition < oldPosition {
			err = siblingScope(tx.Model(&models.Task{}), task.ProjectID, task.ParentTaskID).
				Where("position >= ? AND position < ?", newPosition, oldPosition).
				UpdateColumn("position", gorm.Expr("position + 1")).Error
		}
		if err != nil {
			return err
		}

		task.Position = newPosition

		return tx.Model(&models.Task{}).Where("id = ?", task.ID).
			Update("position", newPosition).Error
	})

	if err != nil {
		if errors.Is(err, errPositionConflict) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "Task was reordered by someone else"})
			return
		}
		log.Printf("Failed to move task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.hub.BroadcastRefresh(task.ProjectID)

	ctx.JSON(http.StatusOK, taskResponse(task))
}

// Delete removes the task together with its subtree, comments and
// attachments.
func (h *TaskHandler) Delete(ctx *gin.Context) {
	userID, taskID, ok := h.identify(ctx)
	if !ok {
		return
	}

	_, task, err := h.authz.RequireForTask(userID, taskID, authz.ActionDelete)

	if err != nil {
		respondAccessError(ctx, err, "Task")
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		ids, err := subtreeIDs(tx, task.ID)
		if err != nil {
			return err
		}

		if err := tx.Where("task_id IN ?", ids).Delete(&models.TaskComment{}).Error; err != nil {
			return err
		}

		if err := tx.Where("task_id IN ?", ids).Delete(&models.TaskAttachment{}).Error; err != nil {
			return err
		}

		if err := tx.Where("id IN ?", ids).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		// Close the gap left among the former siblings.
		return siblingScope(tx.Model(&models.Task{}), task.ProjectID, task.ParentTaskID).
			Where("position > ?", task.Position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
	})

	if err != nil {
		log.Printf("Failed to delete task %d: %v", taskID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.hub.BroadcastRefresh(task.ProjectID)

	ctx.Status(http.StatusNoContent)
}

// wouldCycle walks up from the proposed parent; a cycle exists when the
// chain passes through the task itself. Cost is O(depth) per check.
func (h *TaskHandler) wouldCycle(taskID, parentID uint) (bool, error) {
	current := parentID

	for {
		if current == taskID {
			return true, nil
		}

		var parent models.Task

		if err := h.db.Select("id", "parent_task_id").First(&parent, current).Error; err != nil {
			return false, err
		}

		if parent.ParentTaskID == nil {
			return false, nil
		}

		current = *parent.ParentTaskID
	}
}

// subtreeIDs collects the task and all its descendants breadth-first.
func subtreeIDs(tx *gorm.DB, rootID uint) ([]uint, error) {
	ids := []uint{rootID}
	frontier := []uint{rootID}

	for len(frontier) > 0 {
		var children []uint

		err := tx.Model(&models.Task{}).Where("parent_task_id IN ?", frontier).
			Pluck("id", &children).Error
		if err != nil {
			return nil, err
		}

		ids = append(ids, children...)
		frontier = children
	}

	return ids, nil
}

// siblingScope narrows a task query to one sibling group: same project,
// same parent (or both top-level).
func siblingScope(q *gorm.DB, projectID uint, parentID *uint) *gorm.DB {
	q = q.Where("project_id = ?", projectID)

	if parentID != nil {
		return q.Where("parent_task_id = ?", *parentID)
	}

	return q.Where("parent_task_id IS NULL")
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (h *TaskHandler) identify(ctx *gin.Context) (userID, taskID uint, ok bool) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, 0, false
	}

	taskID, err = utils.ParamUint(ctx, "task_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}

	return userID, taskID, true
}
