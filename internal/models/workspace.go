package models

import "gorm.io/gorm"

type Workspace struct {
	gorm.Model

	Name        string `gorm:"not null"`
	Description string
	OwnerID     uint `gorm:"not null;index"`

	// Relationships
	Owner    User              `gorm:"foreignKey:OwnerID"`
	Members  []WorkspaceMember `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Projects []Project         `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Events   []Event           `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}

// WorkspaceMember is the (user, workspace, role) authorization edge. The
// composite unique index makes concurrent duplicate inserts fail at the
// storage layer rather than racing past an application-level check.
type WorkspaceMember struct {
	gorm.Model

	WorkspaceID uint   `gorm:"not null;uniqueIndex:idx_workspace_user"`
	UserID      uint   `gorm:"not null;uniqueIndex:idx_workspace_user"`
	Role        string `gorm:"not null"`

	// Relationships
	Workspace Workspace `gorm:"foreignKey:WorkspaceID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
