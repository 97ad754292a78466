package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret!", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if hash == "s3cret!" {
		t.Fatal("password stored in clear")
	}

	tests := []struct {
		password string
		want     bool
	}{
		{"s3cret!", true},
		{"wrong", false},
		{"", false},
	}
	for _, tt := range tests {
		ok, err := CheckPassword(hash, tt.password)
		if err != nil {
			t.Fatalf("CheckPassword(%q) err=%v", tt.password, err)
		}
		if ok != tt.want {
			t.Fatalf("CheckPassword(%q)=%v want %v", tt.password, ok, tt.want)
		}
	}

	if _, err := CheckPassword("not-a-hash", "x"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestTokenIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, expires, err := issuer.Issue(42)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expiry in the past: %v", expires)
	}

	id, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse err=%v", err)
	}
	if id != 42 {
		t.Fatalf("user id=%d want=42", id)
	}
}

func TestTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	token, _, err := issuer.Issue(7)
	if err != nil {
		t.Fatal(err)
	}

	expired := NewTokenIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name   string
		parser *TokenIssuer
		token  string
	}{
		{name: "wrong secret", parser: NewTokenIssuer("other-secret", time.Hour), token: token},
		{name: "expired", parser: expired, token: token},
		{name: "garbage", parser: issuer, token: "abc.def.ghi"},
		{name: "empty", parser: issuer, token: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parser.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("want ErrInvalidToken, got %v", err)
			}
		})
	}
}
