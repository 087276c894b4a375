package auth

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/teamflow-dev/teamflow/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testStore(t *testing.T) *CredentialStore {
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

	if err := conn.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewCredentialStore(conn)
}

func TestRegisterAndVerify(t *testing.T) {
	store := testStore(t)

	user, err := store.Register("Ann@X.com", "Secret123", "Ann")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Email != "ann@x.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}

	if user.PasswordHash == "Secret123" || user.PasswordHash == "" {
		t.Error("password stored without hashing")
	}

	verified, err := store.Verify("ann@x.com", "Secret123")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if verified.ID != user.ID {
		t.Errorf("Verify returned user %d, want %d", verified.ID, user.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := testStore(t)

	if _, err := store.Register("ann@x.com", "Secret123", "Ann"); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	if _, err := store.Register("ann@x.com", "Other-Pass1", "Annie"); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("second Register returned %v, want ErrDuplicateEmail", err)
	}
}

func TestRegisterDefaultsName(t *testing.T) {
	store := testStore(t)

	user, err := store.Register("bob@example.com", "Secret123", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Name != "bob" {
		t.Errorf("Name = %q, want the email local part", user.Name)
	}
}

// Unknown email and wrong password must be indistinguishable.
func TestVerifyUniformFailure(t *testing.T) {
	store := testStore(t)

	if _, err := store.Register("ann@x.com", "Secret123", "Ann"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPass := store.Verify("ann@x.com", "wrong")
	_, unknown := store.Verify("nobody@x.com", "Secret123")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Errorf("wrong password returned %v, want ErrInvalidCredentials", wrongPass)
	}

	if !errors.Is(unknown, ErrInvalidCredentials) {
		t.Errorf("unknown email returned %v, want ErrInvalidCredentials", unknown)
	}

	if wrongPass.Error() != unknown.Error() {
		t.Errorf("failure messages differ: %q vs %q", wrongPass, unknown)
	}
}
