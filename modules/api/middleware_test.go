package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/averyowl/chat/modules/auth"
	"github.com/averyowl/chat/modules/chat"
	"github.com/gofiber/fiber/v2"
)

// mockVerifier implements TokenVerifier for testing.
type mockVerifier struct {
	verifyFunc func(token string) (*auth.Claims, error)
}

func (m *mockVerifier) VerifyToken(token string) (*auth.Claims, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(token)
	}
	return nil, auth.ErrInvalidToken
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		authHeader     string
		verifier       *mockVerifier
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "missing authorization header",
			authHeader:     "",
			verifier:       &mockVerifier{},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "missing authorization token",
		},
		{
			name:       "invalid token",
			authHeader: "Bearer bad-token",
			verifier: &mockVerifier{
				verifyFunc: func(string) (*auth.Claims, error) {
					return nil, auth.ErrInvalidToken
				},
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid token",
		},
		{
			name:       "expired token",
			authHeader: "Bearer old-token",
			verifier: &mockVerifier{
				verifyFunc: func(string) (*auth.Claims, error) {
					return nil, auth.ErrExpiredToken
				},
			},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "token has expired",
		},
		{
			name:       "valid token",
			authHeader: "Bearer good-token",
			verifier: &mockVerifier{
				verifyFunc: func(string) (*auth.Claims, error) {
					return &auth.Claims{UserID: "user-123", Email: "alice@example.com"}, nil
				},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "authenticated",
		},
		{
			name:       "bare token without bearer prefix",
			authHeader: "good-token",
			verifier: &mockVerifier{
				verifyFunc: func(token string) (*auth.Claims, error) {
					if token != "good-token" {
						return nil, auth.ErrInvalidToken
					}
					return &auth.Claims{UserID: "user-123"}, nil
				},
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "authenticated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(AuthMiddleware(tt.verifier))
			app.Get("/test", func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{"status": "authenticated"})
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %v, want %v", resp.StatusCode, tt.expectedStatus)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("io.ReadAll() error = %v", err)
			}
			if !strings.Contains(string(body), tt.expectedBody) {
				t.Errorf("body = %v, want to contain %v", string(body), tt.expectedBody)
			}
		})
	}
}

func TestAuthMiddleware_ClaimsInContext(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(string) (*auth.Claims, error) {
			return &auth.Claims{
				UserID:   "user-456",
				Email:    "bob@example.com",
				FullName: "Bob Jones",
			}, nil
		},
	}

	app := fiber.New()
	app.Use(AuthMiddleware(verifier))

	var captured *auth.Claims
	app.Get("/test", func(c *fiber.Ctx) error {
		captured = claimsFrom(c)
		return c.JSON(fiber.Map{"status": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if captured == nil {
		t.Fatal("claims not set in context")
	}
	if captured.UserID != "user-456" {
		t.Errorf("claims.UserID = %v, want %v", captured.UserID, "user-456")
	}
	if captured.Email != "bob@example.com" {
		t.Errorf("claims.Email = %v, want %v", captured.Email, "bob@example.com")
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: chat.ErrNotFound, want: http.StatusNotFound},
		{name: "forbidden", err: chat.ErrForbidden, want: http.StatusForbidden},
		{name: "not a member", err: chat.ErrNotMember, want: http.StatusBadRequest},
		{name: "direct room operation", err: chat.ErrInvalidOperation, want: http.StatusBadRequest},
		{name: "invalid credentials", err: auth.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "unknown error", err: io.ErrUnexpectedEOF, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
