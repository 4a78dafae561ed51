package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"frameworks/pkg/ctxkeys"

	"github.com/gin-gonic/gin"
)

func newGuardedRouter(secret []byte, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(secret))
	r.GET("/ok", handler)
	return r
}

func doGet(r *gin.Engine, mutate func(*http.Request)) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ok", nil)
	if mutate != nil {
		mutate(req)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateJWT("u1", "acct-1", "u@example.com", "owner", secret)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	r := newGuardedRouter(secret, func(c *gin.Context) {
		if c.GetString(string(ctxkeys.KeyUserID)) != "u1" || c.GetString(string(ctxkeys.KeyAccountID)) != "acct-1" {
			t.Errorf("claims not set")
		}
		if ctxkeys.GetAccountID(c) != "acct-1" {
			t.Errorf("ctxkeys lookup through gin context failed")
		}
		c.String(http.StatusOK, "ok")
	})

	if w := doGet(r, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", w.Code)
	}
	if w := doGet(r, func(req *http.Request) { req.Header.Set("Authorization", "Token abc") }); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad scheme: expected 401, got %d", w.Code)
	}
	if w := doGet(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }); w.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", w.Code)
	}
	if w := doGet(r, func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "access_token", Value: token}) }); w.Code != http.StatusOK {
		t.Fatalf("cookie token: expected 200, got %d", w.Code)
	}
}

func TestJWTAuthMiddlewareRejectsExpiredAndForeignTokens(t *testing.T) {
	secret := []byte("secret")
	expired, err := GenerateJWTWithTTL("u1", "a1", "u@example.com", "owner", secret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWTWithTTL: %v", err)
	}
	foreign, err := GenerateJWT("u1", "a1", "u@example.com", "owner", []byte("other"))
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	r := newGuardedRouter(secret, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	for name, tok := range map[string]string{"expired": expired, "foreign": foreign, "garbage": "not.a.jwt"} {
		w := doGet(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+tok) })
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, w.Code)
		}
	}
}

func TestJWTAuthMiddlewareServiceToken(t *testing.T) {
	t.Setenv("SERVICE_TOKEN", "svc-token")
	r := newGuardedRouter([]byte("secret"), func(c *gin.Context) {
		if c.GetString(string(ctxkeys.KeyAuthType)) != "service" {
			t.Errorf("expected service auth type")
		}
		if c.GetString(string(ctxkeys.KeyUserID)) != ServiceUserID {
			t.Errorf("expected service user id")
		}
		c.String(http.StatusOK, "ok")
	})
	if w := doGet(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer svc-token") }); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doGet(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer svc-wrong") }); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestValidateServiceToken(t *testing.T) {
	if err := ValidateServiceToken("", "x"); err != ErrMissingServiceToken {
		t.Fatalf("expected ErrMissingServiceToken, got %v", err)
	}
	if err := ValidateServiceToken("y", "x"); err != ErrInvalidServiceToken {
		t.Fatalf("expected ErrInvalidServiceToken, got %v", err)
	}
	if err := ValidateServiceToken("x", "x"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidateJWTClaims(t *testing.T) {
	secret := []byte("secret")
	token, err := GenerateJWT("u9", "a9", "u9@example.com", "editor", secret)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.UserID != "u9" || claims.AccountID != "a9" || claims.Role != "editor" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ValidateJWT(token, []byte("nope")); err != ErrInvalidJWT {
		t.Fatalf("expected ErrInvalidJWT, got %v", err)
	}
}
