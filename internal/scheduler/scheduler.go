// Package scheduler runs the reminder loop: tasks approaching their due
// date and events about to start each produce one notification.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/services"
	"gorm.io/gorm"
)

const (
	defaultInterval = time.Minute
	taskDueWindow   = 24 * time.Hour
	eventSoonWindow = time.Hour
)

type Scheduler struct {
	db       *gorm.DB
	notifier *services.Notifier
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(conn *gorm.DB, notifier *services.Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		db:       conn,
		notifier: notifier,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	log.Println("Starting reminder scheduler...")

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Println("Reminder scheduler stopped")
}

// Sweep runs one pass over due tasks and upcoming events.
func (s *Scheduler) Sweep() {
	s.remindDueTasks()
	s.remindUpcomingEvents()
}

func (s *Scheduler) remindDueTasks() {
	now := time.Now()
	cutoff := now.Add(taskDueWindow)

	var tasks []models.Task

	err := s.db.
		Where("due_date IS NOT NULL AND due_date <= ? AND due_date >= ?", cutoff, now).
		Where("reminder_sent_at IS NULL").
		Where("assignee_id IS NOT NULL").
		Where("status NOT IN ?", []string{models.TaskStatusDone, models.TaskStatusCancelled}).
		Find(&tasks).Error
	if err != nil {
		log.Printf("Failed to scan for due tasks: %v", err)
		return
	}

	for _, task := range tasks {
		s.notifier.Notify(
			*task.AssigneeID,
			"Task due soon",
			fmt.Sprintf("%q is due %s", task.Title, task.DueDate.Format(time.RFC1123)),
			models.NotificationTaskDueSoon,
			task.ID,
			map[string]interface{}{"project_id": task.ProjectID},
		)

		if err := s.db.Model(&models.Task{}).Where("id = ?", task.ID).
			Update("reminder_sent_at", now).Error; err != nil {
			log.Printf("Failed to mark reminder sent for task %d: %v", task.ID, err)
		}
	}
}

func (s *Scheduler) remindUpcomingEvents() {
	now := time.Now()
	cutoff := now.Add(eventSoonWindow)

	var events []models.Event

	err := s.db.
		Where("start_time <= ? AND start_time >= ?", cutoff, now).
		Where("reminder_sent_at IS NULL").
		Find(&events).Error
	if err != nil {
		log.Printf("Failed to scan for upcoming events: %v", err)
		return
	}

	for _, event := range events {
		var attendees []models.EventAttendee

		if err := s.db.Where("event_id = ? AND status <> ?", event.ID, models.AttendeeStatusDeclined).
			Find(&attendees).Error; err != nil {
			log.Printf("Failed to load attendees for event %d: %v", event.ID, err)
			continue
		}

		for _, attendee := range attendees {
			s.notifier.Notify(
				attendee.UserID,
				"Event starting soon",
				fmt.Sprintf("%q starts %s", event.Title, event.StartTime.Format(time.RFC1123)),
				models.NotificationEventStarting,
				event.ID,
				map[string]interface{}{"workspace_id": event.WorkspaceID},
			)
		}

		if err := s.db.Model(&models.Event{}).Where("id = ?", event.ID).
			Update("reminder_sent_at", now).Error; err != nil {
			log.Printf("Failed to mark reminder sent for event %d: %v", event.ID, err)
		}
	}
}
