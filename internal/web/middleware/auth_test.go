package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, expiresAt, err := issuer.Issue("admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expected expiry in the future")
	}

	username, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if username != "admin" {
		t.Errorf("username = %q, want admin", username)
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Validate(tt.token); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenIssuer("other-secret", time.Hour)
		token, _, err := other.Issue("admin")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := issuer.Validate(token); err == nil {
			t.Error("expected validation error for token signed with other secret")
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewTokenIssuer("test-secret", -time.Minute)
		token, _, err := expired.Issue("admin")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := issuer.Validate(token); err == nil {
			t.Error("expected validation error for expired token")
		}
	})
}

func TestRequireAuth(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	var seenAdmin string
	handler := RequireAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAdmin = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := issuer.Issue("admin")
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
		if seenAdmin != "admin" {
			t.Errorf("admin in context = %q, want admin", seenAdmin)
		}
	})
}
