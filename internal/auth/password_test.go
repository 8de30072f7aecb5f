package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/usuarios-api/internal/apperror"
	"github.com/sakif/usuarios-api/internal/clock"
	"github.com/sakif/usuarios-api/internal/model"
)

// =========================================================================
// HELPER
// =========================================================================

// newTestPasswordService uses the minimum bcrypt cost so each hash takes
// milliseconds.
func newTestPasswordService(t *testing.T) *PasswordService {
	t.Helper()
	ps, err := NewPasswordService(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordService: %v", err)
	}
	return ps
}

func TestNewPasswordService_RejectsBadCost(t *testing.T) {
	for _, cost := range []int{0, 3, 32} {
		if _, err := NewPasswordService(cost); err == nil {
			t.Errorf("NewPasswordService(%d) should fail", cost)
		}
	}
}

// BCRYPT_COST is validated against the same bounds; the edges must be
// accepted. Cost 31 is only constructed, never used to hash.
func TestNewPasswordService_AcceptsBoundaryCosts(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, DefaultPasswordCost, bcrypt.MaxCost} {
		if _, err := NewPasswordService(cost); err != nil {
			t.Errorf("NewPasswordService(%d) error = %v", cost, err)
		}
	}
}

func TestHash_EmbedsConfiguredCost(t *testing.T) {
	for _, cost := range []int{bcrypt.MinCost, bcrypt.MinCost + 1} {
		ps, err := NewPasswordService(cost)
		if err != nil {
			t.Fatalf("NewPasswordService(%d): %v", cost, err)
		}

		hash, err := ps.Hash("GoodPass1")
		if err != nil {
			t.Fatalf("Hash() error = %v", err)
		}

		got, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			t.Fatalf("bcrypt.Cost: %v", err)
		}
		if got != cost {
			t.Errorf("hash cost = %d, want %d", got, cost)
		}
	}
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService(t)

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// bcrypt hashes always start with $2a$ or $2b$
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SamePasswordProducesDifferentHashes(t *testing.T) {
	ps := newTestPasswordService(t)

	// Random salt per hash.
	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password (salt must be random)")
	}
}

func TestHash_RejectsPasswordOver72Bytes(t *testing.T) {
	ps := newTestPasswordService(t)

	longPassword := strings.Repeat("a", 73)
	_, err := ps.Hash(longPassword)
	if err == nil {
		t.Fatal("Hash() should return an error for passwords longer than 72 bytes")
	}
}

func TestHash_AcceptsPasswordExactly72Bytes(t *testing.T) {
	ps := newTestPasswordService(t)

	exactPassword := strings.Repeat("a", 72)
	_, err := ps.Hash(exactPassword)
	if err != nil {
		t.Fatalf("Hash() should accept a 72-byte password, got error: %v", err)
	}
}

// The entity's password rule and the hasher agree on the 72-byte limit: every
// password the entity accepts can be hashed, and the first length the
// hasher refuses is also refused by the entity.
func TestHash_AgreesWithEntityPasswordLimit(t *testing.T) {
	ps := newTestPasswordService(t)

	longest := "Aa1" + strings.Repeat("x", 69)
	if err := model.ValidatePassword(longest); err != nil {
		t.Fatalf("ValidatePassword(72 bytes) error = %v", err)
	}
	if _, err := ps.Hash(longest); err != nil {
		t.Fatalf("Hash(72 bytes) error = %v", err)
	}

	tooLong := longest + "x"
	if err := model.ValidatePassword(tooLong); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ValidatePassword(73 bytes) error = %v, want validation error", err)
	}
	if _, err := ps.Hash(tooLong); err == nil {
		t.Error("Hash(73 bytes) should fail")
	}
}

func TestPasswordService_BacksRegisterUser(t *testing.T) {
	ps := newTestPasswordService(t)
	clk := clock.NewManual(time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC))

	u, err := model.RegisterUser(model.RegisterParams{
		FullName: "Ana Souza",
		Username: "ana",
		Email:    "ana@example.com",
		Password: "GoodPass1",
	}, ps, clk)
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	if !strings.HasPrefix(u.PasswordHash(), "$2") {
		t.Errorf("stored hash is not bcrypt: %q", u.PasswordHash())
	}
	if !u.CheckPassword("GoodPass1", ps) {
		t.Error("CheckPassword() rejected the registered password")
	}
	if u.CheckPassword("goodpass1", ps) {
		t.Error("CheckPassword() accepted a different password")
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify_CorrectPassword(t *testing.T) {
	ps := newTestPasswordService(t)

	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("Verify() should return nil for a correct password, got: %v", err)
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	ps := newTestPasswordService(t)

	hash, _ := ps.Hash("the-real-password")

	err := ps.Verify(hash, "the-wrong-password")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Verify() error = %v, want ErrPasswordMismatch", err)
	}
}

func TestVerify_EmptyPassword(t *testing.T) {
	ps := newTestPasswordService(t)

	hash, _ := ps.Hash("some-password")

	err := ps.Verify(hash, "")
	if err == nil {
		t.Fatal("Verify() should return an error when password is empty")
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	ps := newTestPasswordService(t)

	err := ps.Verify("not-a-valid-bcrypt-hash", "password")
	if err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("a malformed hash is not a mismatch")
	}
}

// =========================================================================
// ROUND-TRIP TEST
// =========================================================================

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService(t)

	cases := []struct {
		name     string
		password string
	}{
		{"typical", "GoodPass1"},
		{"special characters", "p@$$w0rd!#%"},
		{"unicode", "пароль-密码"},
		{"whitespace", "  leading and trailing  "},
		{"empty-ish", " "},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := ps.Hash(tc.password)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", tc.password, err)
			}

			if err := ps.Verify(hash, tc.password); err != nil {
				t.Errorf("Verify() failed for %q: %v", tc.password, err)
			}
		})
	}
}
