package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/averyowl/chat/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	repo := NewUserRepository(setupTestDB(t))
	return NewService(repo, NewPasswordHasherWithCost(4), testJWTManager(time.Hour))
}

// recordingProvisioner records registration notifications.
type recordingProvisioner struct {
	newUserID   string
	existingIDs []string
	calls       int
}

func (p *recordingProvisioner) OnUserRegistered(_ context.Context, newUserID string, existingIDs []string) error {
	p.calls++
	p.newUserID = newUserID
	p.existingIDs = existingIDs
	return nil
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		FirstName:       "Alice",
		LastName:        "Smith",
		Email:           "alice@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
	}
}

func TestService_Register(t *testing.T) {
	svc := newTestService(t)
	provisioner := &recordingProvisioner{}
	svc.SetProvisioner(provisioner)

	user, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if user.ID == "" {
		t.Error("expected a generated user ID")
	}
	if user.PasswordHash == "password123" {
		t.Error("password must not be stored as plaintext")
	}
	if provisioner.calls != 1 {
		t.Errorf("expected 1 provisioner call, got %d", provisioner.calls)
	}
	if provisioner.newUserID != user.ID {
		t.Errorf("provisioner got userID %q, want %q", provisioner.newUserID, user.ID)
	}
	if len(provisioner.existingIDs) != 0 {
		t.Errorf("first registration should see no existing users, got %v", provisioner.existingIDs)
	}
}

func TestService_Register_NotifiesExistingUsers(t *testing.T) {
	svc := newTestService(t)
	provisioner := &recordingProvisioner{}
	svc.SetProvisioner(provisioner)

	first, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	second := validRegistration()
	second.Email = "bob@example.com"
	second.FirstName = "Bob"
	if _, err := svc.Register(context.Background(), second); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if len(provisioner.existingIDs) != 1 || provisioner.existingIDs[0] != first.ID {
		t.Errorf("expected existing ids [%s], got %v", first.ID, provisioner.existingIDs)
	}
}

func TestService_Register_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RegisterRequest)
		wantErr error
	}{
		{
			name:    "missing first name",
			mutate:  func(r *RegisterRequest) { r.FirstName = "" },
			wantErr: ErrMissingFields,
		},
		{
			name:    "missing password",
			mutate:  func(r *RegisterRequest) { r.Password = "" },
			wantErr: ErrMissingFields,
		},
		{
			name:    "password mismatch",
			mutate:  func(r *RegisterRequest) { r.ConfirmPassword = "different" },
			wantErr: ErrPasswordMismatch,
		},
		{
			name:    "invalid email",
			mutate:  func(r *RegisterRequest) { r.Email = "not-an-email" },
			wantErr: ErrInvalidEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			req := validRegistration()
			tt.mutate(&req)

			if _, err := svc.Register(context.Background(), req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := svc.Register(context.Background(), validRegistration()); !errors.Is(err, ErrUserExists) {
		t.Errorf("Register() error = %v, want %v", err, ErrUserExists)
	}
}

func TestService_Login(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	token, err := svc.Login(context.Background(), "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := svc.VerifyToken(context.Background(), token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("expected email %q, got %q", "alice@example.com", user.Email)
	}
}

func TestService_VerifyToken_DeletedAccount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(NewUserRepository(db), NewPasswordHasherWithCost(4), testJWTManager(time.Hour))

	user, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	token, err := svc.Login(context.Background(), "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, err := svc.VerifyToken(context.Background(), token); err != nil {
		t.Fatalf("VerifyToken() before deletion error = %v", err)
	}

	if err := db.Delete(&domain.User{}, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}

	// A well-signed token is no good once the account behind it is gone.
	if _, err := svc.VerifyToken(context.Background(), token); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("VerifyToken() after deletion error = %v, want %v", err, ErrUserNotFound)
	}
}

func TestService_Login_InvalidCredentials(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "alice@example.com", password: "wrong"},
		{name: "unknown account", email: "nobody@example.com", password: "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), tt.email, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want %v", err, ErrInvalidCredentials)
			}
		})
	}
}

func TestService_UpdateProfile(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err = svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{
		FirstName:       "Alicia",
		CurrentPassword: "password123",
		NewPassword:     "newpassword456",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	updated, err := svc.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if updated.FirstName != "Alicia" {
		t.Errorf("expected first name %q, got %q", "Alicia", updated.FirstName)
	}
	if updated.LastName != "Smith" {
		t.Errorf("last name should be unchanged, got %q", updated.LastName)
	}

	if _, err := svc.Login(context.Background(), "alice@example.com", "newpassword456"); err != nil {
		t.Errorf("Login() with rotated password error = %v", err)
	}
	if _, err := svc.Login(context.Background(), "alice@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with old password error = %v, want %v", err, ErrInvalidCredentials)
	}
}

func TestService_UpdateProfile_WrongCurrentPassword(t *testing.T) {
	svc := newTestService(t)
	user, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err = svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{
		CurrentPassword: "wrong",
		NewPassword:     "newpassword456",
	})
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("UpdateProfile() error = %v, want %v", err, ErrWrongPassword)
	}
}
