package scheduler

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/teamflow-dev/teamflow/db"
	"github.com/teamflow-dev/teamflow/internal/models"
	"github.com/teamflow-dev/teamflow/internal/services"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return conn
}

func seedProject(t *testing.T, conn *gorm.DB) (models.User, models.Project) {
	t.Helper()

	user := models.User{Name: "Ann", Email: "ann@x.com", PasswordHash: "x"}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	workspace := models.Workspace{Name: "Acme", OwnerID: user.ID}
	if err := conn.Create(&workspace).Error; err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	project := models.Project{WorkspaceID: workspace.ID, Name: "Website", Status: models.ProjectStatusActive, CreatorID: user.ID}
	if err := conn.Create(&project).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}

	return user, project
}

func notificationsFor(t *testing.T, conn *gorm.DB, userID uint, notificationType string) []models.Notification {
	t.Helper()

	var notifications []models.Notification

	err := conn.Where("user_id = ? AND type = ?", userID, notificationType).Find(&notifications).Error
	if err != nil {
		t.Fatalf("load notifications: %v", err)
	}

	return notifications
}

func TestSweepRemindsDueTasksOnce(t *testing.T) {
	conn := testDB(t)
	user, project := seedProject(t, conn)

	due := time.Now().Add(2 * time.Hour)

	task := models.Task{
		ProjectID:  project.ID,
		Title:      "Ship it",
		Status:     models.TaskStatusTodo,
		Priority:   models.TaskPriorityMedium,
		AssigneeID: &user.ID,
		CreatorID:  user.ID,
		DueDate:    &due,
		Position:   1,
	}
	if err := conn.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	s := New(conn, services.NewNotifier(conn), time.Minute)

	s.Sweep()

	got := notificationsFor(t, conn, user.ID, models.NotificationTaskDueSoon)
	if len(got) != 1 {
		t.Fatalf("got %d reminders after first sweep, want 1", len(got))
	}

	if got[0].RelatedID != task.ID {
		t.Errorf("reminder related_id = %d, want %d", got[0].RelatedID, task.ID)
	}

	// A second pass must not re-remind.
	s.Sweep()

	if got := notificationsFor(t, conn, user.ID, models.NotificationTaskDueSoon); len(got) != 1 {
		t.Errorf("got %d reminders after second sweep, want 1", len(got))
	}
}

func TestSweepSkipsClosedAndUnassignedTasks(t *testing.T) {
	conn := testDB(t)
	user, project := seedProject(t, conn)

	due := time.Now().Add(2 * time.Hour)
	farOut := time.Now().Add(72 * time.Hour)

	tasks := []models.Task{
		{ProjectID: project.ID, Title: "done", Status: models.TaskStatusDone, Priority: models.TaskPriorityMedium, AssigneeID: &user.ID, CreatorID: user.ID, DueDate: &due, Position: 1},
		{ProjectID: project.ID, Title: "cancelled", Status: models.TaskStatusCancelled, Priority: models.TaskPriorityMedium, AssigneeID: &user.ID, CreatorID: user.ID, DueDate: &due, Position: 2},
		{ProjectID: project.ID, Title: "unassigned", Status: models.TaskStatusTodo, Priority: models.TaskPriorityMedium, CreatorID: user.ID, DueDate: &due, Position: 3},
		{ProjectID: project.ID, Title: "not soon", Status: models.TaskStatusTodo, Priority: models.TaskPriorityMedium, AssigneeID: &user.ID, CreatorID: user.ID, DueDate: &farOut, Position: 4},
	}

	for i := range tasks {
		if err := conn.Create(&tasks[i]).Error; err != nil {
			t.Fatalf("create task %q: %v", tasks[i].Title, err)
		}
	}

	New(conn, services.NewNotifier(conn), time.Minute).Sweep()

	if got := notificationsFor(t, conn, user.ID, models.NotificationTaskDueSoon); len(got) != 0 {
		t.Errorf("got %d reminders, want 0: %+v", len(got), got)
	}
}

func TestSweepRemindsEventAttendeesExceptDeclined(t *testing.T) {
	conn := testDB(t)
	user, project := seedProject(t, conn)

	declined := models.User{Name: "Max", Email: "max@x.com", PasswordHash: "x"}
	if err := conn.Create(&declined).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	start := time.Now().Add(30 * time.Minute)

	event := models.Event{
		WorkspaceID: project.WorkspaceID,
		Title:       "Standup",
		StartTime:   start,
		EndTime:     start.Add(15 * time.Minute),
		EventType:   "MEETING",
		CreatorID:   user.ID,
	}
	if err := conn.Create(&event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}

	attendees := []models.EventAttendee{
		{EventID: event.ID, UserID: user.ID, Status: models.AttendeeStatusAccepted},
		{EventID: event.ID, UserID: declined.ID, Status: models.AttendeeStatusDeclined},
	}

	for i := range attendees {
		if err := conn.Create(&attendees[i]).Error; err != nil {
			t.Fatalf("create attendee: %v", err)
		}
	}

	s := New(conn, services.NewNotifier(conn), time.Minute)

	s.Sweep()
	s.Sweep()

	if got := notificationsFor(t, conn, user.ID, models.NotificationEventStarting); len(got) != 1 {
		t.Errorf("accepted attendee got %d reminders, want 1", len(got))
	}

	if got := notificationsFor(t, conn, declined.ID, models.NotificationEventStarting); len(got) != 0 {
		t.Errorf("declined attendee got %d reminders, want 0", len(got))
	}
}
