package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, claims *Claims, key []byte, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func protectedServer(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.Use(mw)
	e.GET("/whoami", func(c echo.Context) error {
		ctx := c.Request().Context()
		return c.JSON(http.StatusOK, map[string]string{
			"user": UserIDFromContext(ctx),
			"role": RoleProfileIDFromContext(ctx),
		})
	})
	return e
}

func get(e *echo.Echo, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddlewareValidToken(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "555086689106",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		RoleProfileID: "100102238986",
	}
	token := signToken(t, claims, testKey, jwt.SigningMethodHS256)

	e := protectedServer(JWTMiddleware(JWTConfig{SigningKey: testKey}))
	rec := get(e, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"555086689106", "100102238986"} {
		if !strings.Contains(body, want) {
			t.Errorf("identity %s missing from context: %s", want, body)
		}
	}
}

func TestJWTMiddlewareRejections(t *testing.T) {
	valid := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	expired := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.token"},
		{"wrong key", "Bearer " + signToken(t, valid, []byte("other-key"), jwt.SigningMethodHS256)},
		{"expired token", "Bearer " + signToken(t, expired, testKey, jwt.SigningMethodHS256)},
	}

	e := protectedServer(JWTMiddleware(JWTConfig{SigningKey: testKey}))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := get(e, tt.header); rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestJWTMiddlewareIssuerAudience(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user",
		Issuer:    "epsgw",
		Audience:  jwt.ClaimStrings{"prescribing"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token := signToken(t, claims, testKey, jwt.SigningMethodHS256)

	e := protectedServer(JWTMiddleware(JWTConfig{SigningKey: testKey, Issuer: "epsgw", Audience: "prescribing"}))
	if rec := get(e, "Bearer "+token); rec.Code != http.StatusOK {
		t.Errorf("matching issuer/audience rejected: %d", rec.Code)
	}

	strict := protectedServer(JWTMiddleware(JWTConfig{SigningKey: testKey, Issuer: "someone-else"}))
	if rec := get(strict, "Bearer "+token); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong issuer accepted: %d", rec.Code)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := protectedServer(DevAuthMiddleware())
	rec := get(e, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dev-user") || !strings.Contains(rec.Body.String(), "dev-role") {
		t.Errorf("development identity missing: %s", rec.Body.String())
	}
}

