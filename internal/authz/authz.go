// Package authz maps (identity, resource, action) to allow/deny decisions.
// Authorization is always evaluated at the workspace level: resources nested
// under a project are resolved up to their workspace before the role check.
package authz

import (
	"errors"

	"github.com/teamflow-dev/teamflow/internal/models"
	"gorm.io/gorm"
)

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// roleRank gives the strict ordering OWNER > ADMIN > MEMBER > VIEWER.
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

func ValidRole(role Role) bool {
	_, ok := roleRank[role]
	return ok
}

// AtLeast reports whether r sits at or above other in the hierarchy.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

type Action string

const (
	ActionView            Action = "VIEW"
	ActionCreate          Action = "CREATE"
	ActionEdit            Action = "EDIT"
	ActionDelete          Action = "DELETE"
	ActionManageMembers   Action = "MANAGE_MEMBERS"
	ActionDeleteWorkspace Action = "DELETE_WORKSPACE"
)

// minimumRole is the policy table: the lowest role allowed to perform each
// action.
var minimumRole = map[Action]Role{
	ActionView:            RoleViewer,
	ActionCreate:          RoleMember,
	ActionEdit:            RoleMember,
	ActionDelete:          RoleAdmin,
	ActionManageMembers:   RoleAdmin,
	ActionDeleteWorkspace: RoleOwner,
}

var (
	ErrForbidden  = errors.New("insufficient role for action")
	ErrNotAMember = errors.New("not a member of workspace")
)

// Authorize checks the role against the policy table for the action.
func Authorize(action Action, role Role) error {
	min, ok := minimumRole[action]
	if !ok {
		return ErrForbidden
	}
	if !role.AtLeast(min) {
		return ErrForbidden
	}
	return nil
}

// Authorizer resolves memberships and project/task ancestry against the
// store. Handlers must go through Require* before every mutating operation;
// nothing else grants access.
type Authorizer struct {
	db *gorm.DB
}

func NewAuthorizer(conn *gorm.DB) *Authorizer {
	return &Authorizer{db: conn}
}

func (a *Authorizer) ResolveMembership(userID, workspaceID uint) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember

	err := a.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotAMember
		}
		return nil, err
	}

	return &member, nil
}

// Require resolves the caller's membership in the workspace and checks it
// against the policy table.
func (a *Authorizer) Require(userID, workspaceID uint, action Action) (*models.WorkspaceMember, error) {
	member, err := a.ResolveMembership(userID, workspaceID)
	if err != nil {
		return nil, err
	}

	if err := Authorize(action, Role(member.Role)); err != nil {
		return nil, err
	}

	return member, nil
}

// RequireForProject resolves the project up to its workspace and authorizes
// there.
func (a *Authorizer) RequireForProject(userID, projectID uint, action Action) (*models.WorkspaceMember, *models.Project, error) {
	var project models.Project

	if err := a.db.First(&project, projectID).Error; err != nil {
		return nil, nil, err
	}

	member, err := a.Require(userID, project.WorkspaceID, action)
	if err != nil {
		return nil, nil, err
	}

	return member, &project, nil
}

// RequireForTask resolves task → project → workspace and authorizes at the
// workspace.
func (a *Authorizer) RequireForTask(userID, taskID uint, action Action) (*models.WorkspaceMember, *models.Task, error) {
	var task models.Task

	if err := a.db.First(&task, taskID).Error; err != nil {
		return nil, nil, err
	}

	member, _, err := a.RequireForProject(userID, task.ProjectID, action)
	if err != nil {
		return nil, nil, err
	}

	return member, &task, nil
}

// RequireForEvent resolves event → workspace and authorizes there.
func (a *Authorizer) RequireForEvent(userID, eventID uint, action Action) (*models.WorkspaceMember, *models.Event, error) {
	var event models.Event

	if err := a.db.First(&event, eventID).Error; err != nil {
		return nil, nil, err
	}

	member, err := a.Require(userID, event.WorkspaceID, action)
	if err != nil {
		return nil, nil, err
	}

	return member, &event, nil
}
