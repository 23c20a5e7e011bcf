package rbac

import "errors"

var (
	ErrNotFound     = errors.New("rbac: not found")
	ErrConflict     = errors.New("rbac: resource conflict")
	ErrInvalidInput = errors.New("rbac: invalid input")
	ErrRoleInUse    = errors.New("rbac: role has active assignments")
)
