package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification types as written to the Type column.
const (
	NotificationTaskAssigned  = "TASK_ASSIGNED"
	NotificationTaskDueSoon   = "TASK_DUE_SOON"
	NotificationMemberAdded   = "MEMBER_ADDED"
	NotificationEventInvite   = "EVENT_INVITE"
	NotificationEventStarting = "EVENT_STARTING"
)

// Notification is fire-and-forget: rows reference related resources by bare
// ID with no cascade, so deleting a task or event leaves history intact.
type Notification struct {
	gorm.Model

	UserID    uint   `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Message   string
	Type      string `gorm:"not null"`
	RelatedID uint
	Data      datatypes.JSON `gorm:"type:jsonb"`
	ReadAt    *time.Time

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
}
