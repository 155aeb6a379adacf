package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("S3curePass!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a hash")
	}

	if err := VerifyPassword(hash, "S3curePass!"); err != nil {
		t.Errorf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-password"); err == nil {
		t.Error("expected a mismatch for the wrong password")
	}
}

func TestPasswordPolicy(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password err = %v, want ErrPasswordTooShort", err)
	}
	if _, err := HashPassword(strings.Repeat("a", 80)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("long password err = %v, want ErrPasswordTooLong", err)
	}
}
