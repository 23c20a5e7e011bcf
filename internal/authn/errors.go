package authn

import "errors"

var (
	// ErrInvalidCredentials is returned for unknown email and wrong password
	// alike so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("authn: invalid credentials")
	ErrInvalidToken       = errors.New("authn: invalid token")
	ErrNotFound           = errors.New("authn: not found")
	// ErrCurrentSession is returned when remote invalidation targets the
	// caller's own current session. The current device must log out instead.
	ErrCurrentSession = errors.New("authn: cannot invalidate current session")
)
