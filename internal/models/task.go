package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TaskStatusTodo       = "TODO"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusDone       = "DONE"
	TaskStatusCancelled  = "CANCELLED"
)

const (
	TaskPriorityLow    = "LOW"
	TaskPriorityMedium = "MEDIUM"
	TaskPriorityHigh   = "HIGH"
)

func ValidTaskPriority(priority string) bool {
	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// CanTransition reports whether a task may move from one status to another
// through a plain status update. Re-entering the current status is always
// allowed and has no effect beyond a timestamp refresh. DONE and CANCELLED
// are terminal here; leaving DONE requires the explicit reopen operation.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}

	switch from {
	case TaskStatusTodo:
		return to == TaskStatusInProgress || to == TaskStatusCancelled
	case TaskStatusInProgress:
		return to == TaskStatusDone || to == TaskStatusCancelled
	default:
		return false
	}
}

type Task struct {
	gorm.Model

	ProjectID    uint  `gorm:"not null;index"`
	ParentTaskID *uint `gorm:"index"`
	Title        string `gorm:"not null"`
	Description  string
	Status       string `gorm:"not null;default:TODO"`
	Priority     string `gorm:"not null;default:MEDIUM"`
	AssigneeID   *uint
	CreatorID    uint `gorm:"not null"`
	DueDate      *time.Time
	Position     int `gorm:"not null"`

	// Set once the due-date reminder has been delivered.
	ReminderSentAt *time.Time

	// Relationships
	Project     Project          `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	ParentTask  *Task            `gorm:"foreignKey:ParentTaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Assignee    *User            `gorm:"foreignKey:AssigneeID"`
	Creator     User             `gorm:"foreignKey:CreatorID"`
	Comments    []TaskComment    `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Attachments []TaskAttachment `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

type TaskComment struct {
	gorm.Model

	TaskID  uint   `gorm:"not null;index"`
	UserID  uint   `gorm:"not null;index"`
	Content string `gorm:"not null"`

	// Relationships
	Task Task `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	User User `gorm:"foreignKey:UserID"`
}

type TaskAttachment struct {
	gorm.Model

	TaskID     uint   `gorm:"not null;index"`
	FileName   string `gorm:"not null"`
	FileURL    string `gorm:"not null"`
	FileSize   int64  `gorm:"not null"`
	MimeType   string
	UploaderID uint `gorm:"not null"`

	// Relationships
	Task     Task `gorm:"foreignKey:TaskID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	Uploader User `gorm:"foreignKey:UploaderID"`
}
