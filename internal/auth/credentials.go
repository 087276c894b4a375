package auth

import (
	"errors"
	"strings"

	"github.com/teamflow-dev/teamflow/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// CredentialStore owns identity records and password verification.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(conn *gorm.DB) *CredentialStore {
	return &CredentialStore{db: conn}
}

func (s *CredentialStore) Register(email, password, fullName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" {
		fullName = strings.SplitN(email, "@", 2)[0]
	}

	var existing models.User
	err := s.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:         fullName,
		Email:        email,
		PasswordHash: string(hash),
	}

	if err := s.db.Create(&user).Error; err != nil {
		// Lost a create-create race; the unique index caught it.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return &user, nil
}

// Verify looks up the identity by email and compares the password against
// the stored bcrypt hash (a constant-time comparison).
func (s *CredentialStore) Verify(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}
