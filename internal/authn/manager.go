package authn

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"adminkit.org/internal/eventbus"
	"adminkit.org/internal/ids"
	"adminkit.org/internal/obs"
	"adminkit.org/internal/rbac"
	"adminkit.org/internal/session"
)

const defaultAccessTTL = 24 * time.Hour

// Directory is the slice of the RBAC service the manager depends on.
type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (rbac.User, error)
	GetUser(ctx context.Context, userID string) (rbac.User, error)
	CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (rbac.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	EffectivePermissions(ctx context.Context, userID string) ([]string, error)
}

// Principal is an authenticated identity reconstructed from a credential.
// Permissions are the snapshot taken at login; they are not refreshed until
// the user logs in again.
type Principal struct {
	UserID      string
	Name        string
	SessionID   string
	Permissions map[string]struct{}
}

// HasPermission reports whether the snapshot contains the permission.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Permissions[key]
	return ok
}

// PermissionList returns the snapshot sorted, for responses and logging.
func (p Principal) PermissionList() []string {
	out := make([]string, 0, len(p.Permissions))
	for k := range p.Permissions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Credential is the issued stateless token plus its metadata.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Principal Principal `json:"-"`
}

// LoginInput carries everything a login attempt needs.
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// Claims is the JWT payload: subject plus display name, the opaque session
// identifier, and the effective-permission snapshot.
type Claims struct {
	Name        string   `json:"name,omitempty"`
	SessionID   string   `json:"sid"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Manager coordinates the hybrid session model: a signed stateless credential
// paired with a revocable registry record keyed by the same session id.
type Manager struct {
	dir      Directory
	sessions *session.Registry
	bus      *eventbus.Bus

	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time

	// concurrentThreshold triggers a detection event when a login would push
	// the active session count past it. Zero disables detection.
	concurrentThreshold int64
}

// Option configures the Manager.
type Option func(*Manager)

func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		if issuer != "" {
			m.issuer = issuer
		}
	}
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.accessTTL = ttl
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func WithConcurrentThreshold(n int64) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.concurrentThreshold = n
		}
	}
}

// NewManager constructs the manager.
func NewManager(dir Directory, sessions *session.Registry, bus *eventbus.Bus, secret string, opts ...Option) (*Manager, error) {
	if dir == nil {
		return nil, errors.New("user directory is required")
	}
	if sessions == nil {
		return nil, errors.New("session registry is required")
	}
	if bus == nil {
		return nil, errors.New("event bus is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required")
	}
	m := &Manager{
		dir:       dir,
		sessions:  sessions,
		bus:       bus,
		secret:    []byte(secret),
		issuer:    "adminkit",
		accessTTL: defaultAccessTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Login verifies credentials and establishes a session. Unknown email and
// wrong password produce the identical error. Registry-write and
// event-publish failures are logged and swallowed: once the credential is
// signed, login has succeeded.
func (m *Manager) Login(ctx context.Context, in LoginInput) (Credential, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || in.Password == "" {
		obs.CountLogin("denied")
		return Credential{}, ErrInvalidCredentials
	}
	user, err := m.dir.FindUserByEmail(ctx, email)
	if err != nil {
		obs.CountLogin("denied")
		return Credential{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, in.Password); err != nil {
		obs.CountLogin("denied")
		return Credential{}, ErrInvalidCredentials
	}

	perms, err := m.dir.EffectivePermissions(ctx, user.ID)
	if err != nil {
		return Credential{}, fmt.Errorf("resolve permissions: %w", err)
	}

	sessionID := ids.NewSessionID()
	now := m.now().UTC()
	expiresAt := now.Add(m.accessTTL)

	token, err := m.sign(user, sessionID, perms, now, expiresAt)
	if err != nil {
		return Credential{}, fmt.Errorf("sign credential: %w", err)
	}

	if err := m.sessions.Create(ctx, session.Record{
		ID:        sessionID,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		IP:        in.IP,
		UserAgent: in.UserAgent,
	}); err != nil {
		obs.LogError("session registry write failed", map[string]any{
			"user_id":    user.ID,
			"session_id": sessionID,
			"error":      err.Error(),
		})
	} else if m.concurrentThreshold > 0 {
		if count, err := m.sessions.CountActive(ctx, user.ID); err == nil && count > m.concurrentThreshold {
			_ = m.bus.Dispatch(ctx, eventbus.ConcurrentSessionDetected{
				UserID:      user.ID,
				ActiveCount: count,
			})
		}
	}

	_ = m.bus.Dispatch(ctx, eventbus.UserLoggedIn{
		UserID:    user.ID,
		SessionID: sessionID,
		IP:        in.IP,
		UserAgent: in.UserAgent,
	})

	obs.CountLogin("ok")
	return Credential{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: Principal{
			UserID:      user.ID,
			Name:        user.DisplayName(),
			SessionID:   sessionID,
			Permissions: permissionSet(perms),
		},
	}, nil
}

// Authenticate validates a credential and reconstructs its principal from the
// embedded snapshot, without touching storage.
func (m *Manager) Authenticate(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		UserID:      claims.Subject,
		Name:        claims.Name,
		SessionID:   claims.SessionID,
		Permissions: permissionSet(claims.Permissions),
	}, nil
}

// Logout deletes the registry record for the current session. The stateless
// credential cannot be recalled; downstream checks that need hard revocation
// consult the registry.
func (m *Manager) Logout(ctx context.Context, p Principal) error {
	if _, err := m.sessions.Delete(ctx, p.SessionID); err != nil {
		obs.LogError("session registry delete failed", map[string]any{
			"session_id": p.SessionID,
			"error":      err.Error(),
		})
	}
	_ = m.bus.Dispatch(ctx, eventbus.UserLoggedOut{UserID: p.UserID, SessionID: p.SessionID})
	return nil
}

// Register creates a user account.
func (m *Manager) Register(ctx context.Context, email, password, firstName, lastName string) (rbac.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return rbac.User{}, fmt.Errorf("%w: password is required", rbac.ErrInvalidInput)
	}
	user, err := m.dir.CreateUser(ctx, email, hash, firstName, lastName)
	if err != nil {
		return rbac.User{}, err
	}
	_ = m.bus.Dispatch(ctx, eventbus.UserRegistered{UserID: user.ID, Email: user.Email})
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash, and
// closes every other session of the user.
func (m *Manager) ChangePassword(ctx context.Context, p Principal, current, next string) error {
	user, err := m.dir.GetUser(ctx, p.UserID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("%w: password is required", rbac.ErrInvalidInput)
	}
	if err := m.dir.UpdatePassword(ctx, p.UserID, hash); err != nil {
		return err
	}
	if _, err := m.sessions.DeleteAllExcept(ctx, p.UserID, p.SessionID); err != nil {
		obs.LogError("closing other sessions after password change failed", map[string]any{
			"user_id": p.UserID,
			"error":   err.Error(),
		})
	}
	_ = m.bus.Dispatch(ctx, eventbus.PasswordChanged{UserID: p.UserID})
	return nil
}

// RequestPasswordReset emits the reset event for a known email. Unknown
// emails are silently accepted so the endpoint cannot be used to enumerate
// accounts. Delivery of the reset message is outside this core.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := m.dir.FindUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil
	}
	_ = m.bus.Dispatch(ctx, eventbus.PasswordResetRequested{UserID: user.ID, Email: user.Email})
	return nil
}

// Sessions lists the caller's session records, enriched for display.
func (m *Manager) Sessions(ctx context.Context, p Principal, includeExpired bool) ([]session.Description, error) {
	recs, err := m.sessions.ListActive(ctx, p.UserID, includeExpired)
	if err != nil {
		return nil, err
	}
	return session.DescribeAll(recs, p.SessionID), nil
}

// InvalidateSession removes one of the caller's other sessions. The current
// session is rejected: that path is reserved for other devices.
func (m *Manager) InvalidateSession(ctx context.Context, p Principal, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", session.ErrInvalidInput)
	}
	if sessionID == p.SessionID {
		return ErrCurrentSession
	}
	deleted, err := m.sessions.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	_ = m.bus.Dispatch(ctx, eventbus.SessionRevoked{
		UserID:    p.UserID,
		SessionID: sessionID,
		Scope:     "one",
		Count:     1,
	})
	return nil
}

// CloseOtherSessions deletes every session of the caller except the current
// one and returns the number removed.
func (m *Manager) CloseOtherSessions(ctx context.Context, p Principal) (int64, error) {
	count, err := m.sessions.DeleteAllExcept(ctx, p.UserID, p.SessionID)
	if err != nil {
		return 0, err
	}
	_ = m.bus.Dispatch(ctx, eventbus.SessionRevoked{
		UserID: p.UserID,
		Scope:  "others",
		Count:  count,
	})
	return count, nil
}

// CloseAllSessions deletes every session of the caller, current one included,
// forcing re-authentication everywhere.
func (m *Manager) CloseAllSessions(ctx context.Context, p Principal) (int64, error) {
	count, err := m.sessions.DeleteAll(ctx, p.UserID)
	if err != nil {
		return 0, err
	}
	_ = m.bus.Dispatch(ctx, eventbus.SessionRevoked{
		UserID: p.UserID,
		Scope:  "all",
		Count:  count,
	})
	return count, nil
}

func (m *Manager) sign(user rbac.User, sessionID string, perms []string, now, expiresAt time.Time) (string, error) {
	claims := Claims{
		Name:        user.DisplayName(),
		SessionID:   sessionID,
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        ids.New(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func permissionSet(perms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}
