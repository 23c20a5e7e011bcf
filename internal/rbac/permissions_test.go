package rbac

import (
	"errors"
	"testing"
)

func TestValidatePermissionKey(t *testing.T) {
	valid := []string{"user:create", "audit:view", "some_module:some_action"}
	for _, key := range valid {
		if err := ValidatePermissionKey(key); err != nil {
			t.Fatalf("expected %q to be valid: %v", key, err)
		}
	}

	invalid := []string{"", "user", "user:", ":create", "User:Create", "user:create:extra", "user create", "user-1:create"}
	for _, key := range invalid {
		err := ValidatePermissionKey(key)
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected %q to be rejected, got %v", key, err)
		}
	}
}

func TestBuiltinPermissionKeysAreValid(t *testing.T) {
	for _, perm := range BuiltinPermissions {
		if err := ValidatePermissionKey(perm.Key); err != nil {
			t.Fatalf("builtin %q invalid: %v", perm.Key, err)
		}
	}
}

func TestPermissionModule(t *testing.T) {
	if got := PermissionModule("user:create"); got != "user" {
		t.Fatalf("expected module user, got %s", got)
	}
	if got := PermissionModule("odd"); got != "odd" {
		t.Fatalf("expected passthrough for keys without colon, got %s", got)
	}
}
