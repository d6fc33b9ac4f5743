package httpkit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"claims_portal_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type testJWTConfig struct{}

func (testJWTConfig) GetJWTAccessSecret() string { return "test-secret" }

type testPrincipal struct {
	sid   string
	user  uuid.UUID
	perms map[string]bool
}

func (p testPrincipal) SessionID() string           { return p.sid }
func (p testPrincipal) UserID() uuid.UUID           { return p.user }
func (p testPrincipal) Email() string               { return "agent@example.fr" }
func (p testPrincipal) DisplayName() string         { return "Agent" }
func (p testPrincipal) PrimaryRole() string         { return "gestionnaire" }
func (p testPrincipal) Roles() []string             { return []string{"gestionnaire"} }
func (p testPrincipal) HasPermission(s string) bool { return p.perms[s] }

type testResolver map[string]Principal

func (r testResolver) ResolvePrincipal(_ context.Context, sid string) (Principal, error) {
	p, ok := r[sid]
	if !ok {
		return nil, errors.New("no session")
	}
	return p, nil
}

func signTestToken(t *testing.T, userID uuid.UUID, sid, tokenType string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"sid":  sid,
		"type": tokenType,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func newAuthEngine(resolver SessionResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	protected := engine.Group("/", AuthRequired(testJWTConfig{}, resolver))
	protected.GET("/me", func(c *gin.Context) {
		OK(c, gin.H{"id": GetIdentity(c).UserID()})
	})
	protected.GET("/edit", RequirePermission("claims.edit", "*"), func(c *gin.Context) {
		OK(c, gin.H{})
	})
	return engine
}

func TestAuthRequired(t *testing.T) {
	userID := uuid.New()
	resolver := testResolver{
		"live": testPrincipal{sid: "live", user: userID, perms: map[string]bool{"claims.view": true}},
	}
	engine := newAuthEngine(resolver)

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"missing token", "/me", "", http.StatusUnauthorized},
		{"live session", "/me", signTestToken(t, userID, "live", AccessTokenType), http.StatusOK},
		{"closed session", "/me", signTestToken(t, userID, "gone", AccessTokenType), http.StatusUnauthorized},
		{"wrong token type", "/me", signTestToken(t, userID, "live", "refresh"), http.StatusUnauthorized},
		{"user mismatch", "/me", signTestToken(t, uuid.New(), "live", AccessTokenType), http.StatusUnauthorized},
		{"missing permission", "/edit", signTestToken(t, userID, "live", AccessTokenType), http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("got status %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestHandleErrorHidesUntypedErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	HandleError(c, errors.New("pq: connection refused on 10.0.0.4"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"error":"internal server error"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestHandleErrorUsesKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	HandleError(c, apperr.Conflict("step is not in progress"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
