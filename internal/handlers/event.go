package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamflow-dev/teamflow/internal/authz"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/services"
	"github.com/teamflow-dev/teamflow/internal/utils"
	"gorm.io/gorm"
)

type EventHandler struct {
	db       *gorm.DB
	authz    *authz.Authorizer
	notifier *services.Notifier
}

func NewEventHandler(conn *gorm.DB, az *authz.Authorizer, notifier *services.Notifier) *EventHandler {
	return &EventHandler{db: conn, authz: az, notifier: notifier}
}

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	Location    string    `json:"location"`
	EventType   string    `json:"event_type"`
	ProjectID   *uint     `json:"project_id"`
	AttendeeIDs []uint    `json:"attendee_ids"`
}

type UpdateEventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	Location    string    `json:"location"`
	EventType   string    `json:"event_type"`
}

type RespondToEventRequest struct {
	Status string `json:"status" binding:"required"`
}

type EventResponse struct {
	ID          uint      `json:"id"`
	WorkspaceID uint      `json:"workspace_id"`
	ProjectID   *uint     `json:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Location    string    `json:"location"`
	EventType   string    `json:"event_type"`
	CreatorID   uint      `json:"creator_id"`
}

func eventResponse(event *models.Event) EventResponse {
	return EventResponse{
		ID:          event.ID,
		WorkspaceID: event.WorkspaceID,
		ProjectID:   event.ProjectID,
		Title:       event.Title,
		Description: event.Description,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		Location:    event.Location,
		EventType:   event.EventType,
		CreatorID:   event.CreatorID,
	}
}

func (h *EventHandler) Create(ctx *gin.Context) {
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

	var body CreateEventRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !body.EndTime.After(body.StartTime) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "End time must be after start time"})
		return
	}

	if _, err := h.authz.Require(userID, workspaceID, authz.ActionCreate); err != nil {
		respondAccessError(ctx, err, "Workspace")
		return
	}

	// An event may be pinned to a project, but only one inside the same
	// workspace.
	if body.ProjectID != nil {
		var project models.Project

		if err := h.db.First(&project, *body.ProjectID).Error; err != nil {
			respondAccessError(ctx, err, "Project")
			return
		}

		if project.WorkspaceID != workspaceID {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Project must belong to the same workspace"})
			return
		}
	}

	for _, attendeeID := range body.AttendeeIDs {
		if _, err := h.authz.ResolveMembership(attendeeID, workspaceID); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "All attendees must be workspace members"})
			return
		}
	}

	eventType := body.EventType

	if eventType == "" {
		eventType = "MEETING"
	}

	event := models.Event{
		WorkspaceID: workspaceID,
		ProjectID:   body.ProjectID,
		Title:       body.Title,
		Description: body.Description,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		Location:    body.Location,
		EventType:   eventType,
		CreatorID:   userID,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		for _, attendeeID := range body.AttendeeIDs {
			attendee := models.EventAttendee{
				EventID: event.ID,
				UserID:  attendeeID,
				Status:  models.AttendeeStatusPending,
			}

			if err := tx.Create(&attendee).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue
				}
				return err
			}
		}

		return nil
	})

	if err != nil {
		log.Printf("Failed to create event in workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	for _, attendeeID := range body.AttendeeIDs {
		if attendeeID == userID {
			continue
		}
		h.notifier.Notify(attendeeID, "Event invitation", event.Title,
			models.NotificationEventInvite, event.ID,
			map[string]interface{}{"workspace_id": workspaceID})
	}

	ctx.JSON(http.StatusCreated, eventResponse(&event))
}

func (h *EventHandler) List(ctx *gin.Context) {
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

	query := h.db.Where("workspace_id = ?", workspaceID)

	// Calendar views pass a window.
	if from := ctx.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			query = query.Where("start_time >= ?", t)
		}
	}

	if to := ctx.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			query = query.Where("start_time <= ?", t)
		}
	}

	var events []models.Event

	if err := query.Order("start_time").Find(&events).Error; err != nil {
		log.Printf("Failed to list events in workspace %d: %v", workspaceID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	response := make([]EventResponse, 0, len(events))

	for i := range events {
		response = append(response, eventResponse(&events[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func (h *EventHandler) Update(ctx *gin.Context) {
	userID, eventID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body UpdateEventRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !body.EndTime.After(body.StartTime) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "End time must be after start time"})
		return
	}

	_, event, err := h.authz.RequireForEvent(userID, eventID, authz.ActionEdit)

	if err != nil {
		respondAccessError(ctx, err, "Event")
		return
	}

	event.Title = body.Title
	event.Description = body.Description
	event.StartTime = body.StartTime
	event.EndTime = body.EndTime
	event.Location = body.Location

	if body.EventType != "" {
		event.EventType = body.EventType
	}

	if err := h.db.Save(event).Error; err != nil {
		log.Printf("Failed to update event %d: %v", eventID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, eventResponse(event))
}

func (h *EventHandler) Delete(ctx *gin.Context) {
	userID, eventID, ok := h.identify(ctx)
	if !ok {
		return
	}

	_, event, err := h.authz.RequireForEvent(userID, eventID, authz.ActionDelete)

	if err != nil {
		respondAccessError(ctx, err, "Event")
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", event.ID).Delete(&models.EventAttendee{}).Error; err != nil {
			return err
		}

		return tx.Delete(event).Error
	})

	if err != nil {
		log.Printf("Failed to delete event %d: %v", eventID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

// Respond records the caller's own RSVP.
func (h *EventHandler) Respond(ctx *gin.Context) {
	userID, eventID, ok := h.identify(ctx)
	if !ok {
		return
	}

	var body RespondToEventRequest

	if err := ctx.BindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if body.Status != models.AttendeeStatusAccepted && body.Status != models.AttendeeStatusDeclined {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Status must be ACCEPTED or DECLINED"})
		return
	}

	var attendee models.EventAttendee

	if err := h.db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&attendee).Error; err != nil {
		respondAccessError(ctx, err, "Invitation")
		return
	}

	attendee.Status = body.Status

	if err := h.db.Save(&attendee).Error; err != nil {
		log.Printf("Failed to record response to event %d: %v", eventID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Response recorded", "status": attendee.Status})
}

func (h *EventHandler) identify(ctx *gin.Context) (userID, eventID uint, ok bool) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, 0, false
	}

	eventID, err = utils.ParamUint(ctx, "event_id")

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, false
	}

	return userID, eventID, true
}
