// Package auth handles accounts, password hashing, bearer tokens and the
// gin middleware that enforces them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/db"
	"github.com/clickstudio/click/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var validate = validator.New()

// RegisterInput holds the fields accepted at sign-up.
type RegisterInput struct {
	Email         string `json:"email" binding:"required"`
	Password      string `json:"password" binding:"required"`
	Name          string `json:"name"`
	WorkspaceName string `json:"workspace_name"`
}

// Session is returned by Register and Login.
type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Service implements account operations.
type Service struct {
	db         *gorm.DB
	tokens     *TokenManager
	bcryptCost int
	now        func() time.Time
}

// NewService returns an auth Service.
func NewService(gdb *gorm.DB, tokens *TokenManager, bcryptCost int) *Service {
	return &Service{db: gdb, tokens: tokens, bcryptCost: bcryptCost, now: time.Now}
}

// Tokens exposes the token manager used by the service.
func (s *Service) Tokens() *TokenManager { return s.tokens }

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a workspace and its owner, and returns a signed session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	user, err := s.CreateUser(ctx, in, RoleUser)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// CreateUser creates a user with the given role in a new personal workspace.
func (s *Service) CreateUser(ctx context.Context, in RegisterInput, role string) (*models.User, error) {
	email := NormalizeEmail(in.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, apierr.BadRequest("a valid email is required")
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, apierr.BadRequest(fmt.Sprintf("unknown role %q", role))
	}
	hash, err := HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, ErrWeakPassword) || errors.Is(err, ErrPasswordTooLong) {
			return nil, apierr.BadRequest(err.Error())
		}
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	wsName := strings.TrimSpace(in.WorkspaceName)
	if wsName == "" {
		if name != "" {
			wsName = name + "'s workspace"
		} else {
			wsName = email
		}
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
	}
	ws := &models.Workspace{
		ID:      uuid.NewString(),
		Name:    wsName,
		Plan:    "free",
		OwnerID: user.ID,
	}
	user.WorkspaceID = ws.ID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return apierr.Conflict("email already registered")
		}
		if err := tx.Create(ws).Error; err != nil {
			return err
		}
		if err := tx.Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierr.Conflict("email already registered")
			}
			return err
		}
		return db.SeedTemplates(tx, ws.ID)
	})
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, fmt.Errorf("auth: create user %s: %w", email, err)
	}
	return user, nil
}

// Login verifies credentials and returns a signed session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("auth: login lookup: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, apierr.Unauthorized("invalid email or password")
	}
	if user.Disabled {
		return nil, apierr.Forbidden("account disabled")
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("auth: record login: %w", err)
	}
	return s.session(&user)
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(user.ID, user.WorkspaceID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// Get loads a user by ID.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get user %s: %w", id, err)
	}
	return &user, nil
}

// GetByEmail loads a user by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get user %s: %w", email, err)
	}
	return &user, nil
}

// List returns all users ordered by creation time.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}
	return users, nil
}

// ResetPassword replaces the password of the user with the given email.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("auth: reset password for %s: %w", user.Email, err)
	}
	return nil
}

// SetDisabled enables or disables sign-in for a user.
func (s *Service) SetDisabled(ctx context.Context, email string, disabled bool) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("disabled", disabled).Error; err != nil {
		return fmt.Errorf("auth: set disabled for %s: %w", user.Email, err)
	}
	return nil
}
