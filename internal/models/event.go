package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AttendeeStatusPending  = "PENDING"
	AttendeeStatusAccepted = "ACCEPTED"
	AttendeeStatusDeclined = "DECLINED"
)

type Event struct {
	gorm.Model

	WorkspaceID uint  `gorm:"not null;index"`
	ProjectID   *uint `gorm:"index"`
	Title       string `gorm:"not null"`
	Description string
	StartTime   time.Time `gorm:"not null"`
	EndTime     time.Time `gorm:"not null"`
	Location    string
	EventType   string `gorm:"not null;default:MEETING"`
	CreatorID   uint   `gorm:"not null"`

	// Set once the starting-soon reminder has been delivered.
	ReminderSentAt *time.Time

	// Relationships
	Workspace Workspace       `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Project   *Project        `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Creator   User            `gorm:"foreignKey:CreatorID"`
	Attendees []EventAttendee `gorm:"foreignKey:EventID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

type EventAttendee struct {
	gorm.Model

	EventID uint   `gorm:"not null;uniqueIndex:idx_event_user"`
	UserID  uint   `gorm:"not null;uniqueIndex:idx_event_user"`
	Status  string `gorm:"not null;default:PENDING"`

	// Relationships
	Event Event `gorm:"foreignKey:EventID;constraint:OnUpdate:Cascade,OnDelete:CASCADE" json:"-"`
	User  User  `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
