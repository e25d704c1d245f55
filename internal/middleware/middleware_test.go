package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "investtracker/internal/errors"
)

const testSecret = "test-secret"

func setupAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r
}

func getWithAuth(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func signClaims(t *testing.T, secret string, claims *JWTClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := setupAuthRouter()
	owner := "0190f5a4-7b3c-7d2e-8f10-123456789abc"

	t.Run("valid_token_sets_owner", func(t *testing.T) {
		tok, err := GenerateAccessToken(testSecret, owner)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rec := getWithAuth(r, "Bearer "+tok)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if body := parseBody(t, rec); body["user_id"] != owner {
			t.Errorf("expected user_id %s, got %v", owner, body["user_id"])
		}
	})

	expired := signClaims(t, testSecret, &JWTClaims{
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	refresh := signClaims(t, testSecret, &JWTClaims{
		TokenType:        "refresh",
		RegisteredClaims: jwt.RegisteredClaims{Subject: owner},
	})
	noSubject := signClaims(t, testSecret, &JWTClaims{TokenType: "access"})
	otherKey, _ := GenerateAccessToken("other-secret", owner)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing_header", header: ""},
		{name: "wrong_scheme", header: "Basic abc"},
		{name: "garbage_token", header: "Bearer not-a-jwt"},
		{name: "wrong_secret", header: "Bearer " + otherKey},
		{name: "expired", header: "Bearer " + expired},
		{name: "refresh_token", header: "Bearer " + refresh},
		{name: "missing_subject", header: "Bearer " + noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := getWithAuth(r, tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
			if errObj["code"] != "UNAUTHORIZED" {
				t.Errorf("expected UNAUTHORIZED, got %v", errObj["code"])
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) { _ = c.Error(apperrors.ErrAlertNotFound) })
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("db exploded")) })
	r.GET("/bind", func(c *gin.Context) { _ = c.Error(errors.New("bad json")).SetType(gin.ErrorTypeBind) })
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusTeapot, gin.H{"ok": true})
		_ = c.Error(errors.New("late"))
	})

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{path: "/app", wantStatus: http.StatusNotFound, wantCode: "ALERT_NOT_FOUND"},
		{path: "/plain", wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
		{path: "/bind", wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{path: "/written", wantStatus: http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantCode == "" {
				return
			}
			errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
			if errObj["code"] != tt.wantCode {
				t.Errorf("expected %s, got %v", tt.wantCode, errObj["code"])
			}
		})
	}
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	t.Run("generates_request_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", http.NoBody))
		if rec.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header")
		}
	})

	t.Run("reuses_incoming_request_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
			t.Errorf("expected abc-123, got %q", got)
		}
	})
}
