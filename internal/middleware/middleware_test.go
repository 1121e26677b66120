package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, secret, username, name, role string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := JWTClaims{
		Username: username,
		Name:     name,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func authedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTAuth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"username":  c.GetString("username"),
			"user_name": c.GetString("user_name"),
			"role":      c.GetString("role"),
		})
	})
	r.DELETE("/admin-only", JWTAuth(testSecret), RequireRole("Administrator"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMissingToken(t *testing.T) {
	r := authedRouter()
	if w := do(r, http.MethodGet, "/protected", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

func TestJWTAuthValidToken(t *testing.T) {
	r := authedRouter()
	token := signToken(t, testSecret, "operator", "Operator One", "User", time.Hour)

	w := do(r, http.MethodGet, "/protected", token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestJWTAuthWrongSecret(t *testing.T) {
	r := authedRouter()
	token := signToken(t, "other-secret", "operator", "Operator One", "User", time.Hour)

	if w := do(r, http.MethodGet, "/protected", token); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

func TestJWTAuthExpiredToken(t *testing.T) {
	r := authedRouter()
	token := signToken(t, testSecret, "operator", "Operator One", "User", -time.Hour)

	if w := do(r, http.MethodGet, "/protected", token); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", w.Code)
	}
}

// SSE clients cannot set headers, so the token may ride in the query.
func TestJWTAuthQueryParamToken(t *testing.T) {
	r := authedRouter()
	token := signToken(t, testSecret, "operator", "Operator One", "User", time.Hour)

	w := do(r, http.MethodGet, "/protected?token="+token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	r := authedRouter()

	user := signToken(t, testSecret, "operator", "Operator One", "User", time.Hour)
	if w := do(r, http.MethodDelete, "/admin-only", user); w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for User role, got %d", w.Code)
	}

	admin := signToken(t, testSecret, "admin", "Admin", "Administrator", time.Hour)
	if w := do(r, http.MethodDelete, "/admin-only", admin); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for Administrator, got %d", w.Code)
	}
}
