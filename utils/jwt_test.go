package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour); err == nil {
		t.Fatal("empty secret accepted")
	}
}

func TestGenerateAndVerifyToken(t *testing.T) {
	m, err := NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, err := m.GenerateToken(42, "student")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != 42 || claims.Role != "student" || claims.Subject != "42" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("token has no id to revoke by")
	}
	if r := m.Remaining(claims); r <= 0 || r > time.Hour {
		t.Fatalf("remaining = %v", r)
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }
	token, err := m.GenerateToken(1, "student")
	if err != nil {
		t.Fatal(err)
	}

	m.now = time.Now
	if _, err := m.VerifyToken(token); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestVerifyTokenRejectsForeignSignatures(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour)
	other, _ := NewTokenManager("other-secret", time.Hour)
	token, _ := other.GenerateToken(1, "student")
	if _, err := m.VerifyToken(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Type:             tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.VerifyToken(unsigned); err == nil {
		t.Fatal("unsigned token accepted")
	}
}

func TestVerifyTokenRejectsWrongTypeOrSubject(t *testing.T) {
	m, _ := NewTokenManager("test-secret", time.Hour)
	sign := func(c Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	refresh := sign(Claims{Type: "refresh", RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: exp}})
	if _, err := m.VerifyToken(refresh); err == nil {
		t.Fatal("non-access token accepted")
	}
	badSubject := sign(Claims{Type: tokenTypeAccess, RegisteredClaims: jwt.RegisteredClaims{Subject: "abc", ExpiresAt: exp}})
	if _, err := m.VerifyToken(badSubject); err == nil {
		t.Fatal("non-numeric subject accepted")
	}
}
