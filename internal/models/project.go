package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProjectStatusActive    = "ACTIVE"
	ProjectStatusArchived  = "ARCHIVED"
	ProjectStatusCompleted = "COMPLETED"
)

func ValidProjectStatus(status string) bool {
	switch status {
	case ProjectStatusActive, ProjectStatusArchived, ProjectStatusCompleted:
		return true
	}
	return false
}

type Project struct {
	gorm.Model

	WorkspaceID uint   `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Description string
	Status      string `gorm:"not null;default:ACTIVE"`
	CreatorID   uint   `gorm:"not null"`
	StartDate   *time.Time
	EndDate     *time.Time

	// Relationships
	Workspace Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Creator   User      `gorm:"foreignKey:CreatorID"`
	Tasks     []Task    `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
