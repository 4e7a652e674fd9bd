package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	domain "github.com/averyowl/chat/domain/user"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrMissingFields is returned when a required registration field is absent.
	ErrMissingFields = errors.New("all fields are required")
	// ErrPasswordMismatch is returned when password confirmation does not match.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrWrongPassword is returned when the current password check fails.
	ErrWrongPassword = errors.New("incorrect current password")
)

// Provisioner is notified once per successful registration so room
// provisioning (global membership, direct-message pairs) can happen outside
// this package.
type Provisioner interface {
	OnUserRegistered(ctx context.Context, newUserID string, existingUserIDs []string) error
}

// Service handles account business logic.
type Service struct {
	repo        *UserRepository
	hasher      *PasswordHasher
	jwt         *JWTManager
	provisioner Provisioner
	logger      *slog.Logger
}

// NewService creates a new account service.
func NewService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
		logger: slog.Default(),
	}
}

// SetProvisioner wires the registration hook. Must be set before Register is
// called.
func (s *Service) SetProvisioner(p Provisioner) {
	s.provisioner = p
}

// Register creates a new account and triggers room provisioning for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" ||
		req.Password == "" || req.ConfirmPassword == "" {
		return nil, ErrMissingFields
	}
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, ErrInvalidEmail
	}

	exists, err := s.repo.EmailExists(req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.New().String()

	// Collected before the insert so the new account is not in its own
	// direct-message peer set.
	existingIDs, err := s.repo.ListIDsExcept(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing users: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           userID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.provisioner != nil {
		if err := s.provisioner.OnUserRegistered(ctx, user.ID, existingIDs); err != nil {
			return nil, fmt.Errorf("failed to provision rooms: %w", err)
		}
	}

	s.logger.Info("user registered", "userID", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates a user and returns a signed token.
func (s *Service) Login(_ context.Context, email, password string) (string, error) {
	user, err := s.repo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return s.jwt.GenerateToken(user.ID, user.Email, user.FullName())
}

// VerifyToken validates a token and confirms the account still exists.
func (s *Service) VerifyToken(_ context.Context, token string) (*domain.User, error) {
	claims, err := s.jwt.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(claims.UserID)
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(userID)
}

// ListUsers returns every registered account.
func (s *Service) ListUsers(_ context.Context) ([]domain.User, error) {
	return s.repo.ListAll()
}

// UpdateProfile updates the caller's name and, when both password fields are
// present, rotates the password after checking the current one.
func (s *Service) UpdateProfile(_ context.Context, userID string, req UpdateProfileRequest) error {
	user, err := s.repo.FindByID(userID)
	if err != nil {
		return err
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if req.CurrentPassword != "" && req.NewPassword != "" {
		if !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
			return ErrWrongPassword
		}
		hash, err := s.hasher.Hash(req.NewPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = time.Now()
	return s.repo.Update(user)
}
