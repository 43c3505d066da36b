package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/motorlot/marketplace-api/internal/platform/identifier"
)

var (
	ErrEmailInUse            = errors.New("email already in use")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserNotFound          = errors.New("user not found")
	ErrShowroomAlreadyLinked = errors.New("showroom already linked")
	ErrUnknownRole           = errors.New("unknown role")
	ErrRoleNotSelectable     = errors.New("role cannot be chosen at registration")
	ErrForbidden             = errors.New("rbac forbidden")
	ErrSessionInvalid        = errors.New("refresh session invalid")
	ErrSessionExpired        = errors.New("refresh session expired")
)

// User is an account on the marketplace. ShowroomID is set for dealers and
// their staff.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	ShowroomID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one refresh chain. Each refresh consumes the session and
// opens a new one.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
}

// Service keeps users and refresh sessions in memory.
type Service struct {
	mu             sync.RWMutex
	users          map[string]User
	userIDsByEmail map[string]string
	sessions       map[string]Session
	bootstrapRoles map[string]Role
	now            func() time.Time
}

func NewService(bootstrapRoles map[string]Role) *Service {
	roles := make(map[string]Role, len(bootstrapRoles))
	for email, role := range bootstrapRoles {
		roles[normalizeEmail(email)] = role
	}
	return &Service{
		users:          make(map[string]User),
		userIDsByEmail: make(map[string]string),
		sessions:       make(map[string]Session),
		bootstrapRoles: roles,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// BuildBootstrapRoleMap assigns staff roles by email. Later arguments win
// when an email appears in more than one list.
func BuildBootstrapRoleMap(superAdmins, admins, seniorModerators, moderators string) map[string]Role {
	assignments := make(map[string]Role)
	for _, group := range []struct {
		emails string
		role   Role
	}{
		{moderators, RoleModerator},
		{seniorModerators, RoleSeniorModerator},
		{admins, RoleAdmin},
		{superAdmins, RoleSuperAdmin},
	} {
		for _, raw := range strings.Split(group.emails, ",") {
			if email := normalizeEmail(raw); email != "" {
				assignments[email] = group.role
			}
		}
	}
	return assignments
}

// SelfServiceRoles are the roles a user may pick when signing up. Dealer
// roles come from registering a showroom, staff roles from an admin.
func SelfServiceRoles() []Role {
	return []Role{RoleBuyer, RoleSeller, RoleGarage}
}

// Register creates an account. Emails on the bootstrap list get their
// staff role regardless of what was requested.
func (s *Service) Register(email, plainPassword string, requested Role) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, ErrInvalidCredentials
	}

	role := RoleBuyer
	if requested != "" {
		if !isSelfServiceRole(requested) {
			return User{}, ErrRoleNotSelectable
		}
		role = requested
	}

	hash, err := HashPassword(plainPassword)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.userIDsByEmail[email]; taken {
		return User{}, ErrEmailInUse
	}
	if staffRole, ok := s.bootstrapRoles[email]; ok {
		role = staffRole
	}

	now := s.now()
	user := User{
		ID:           identifier.New("usr"),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	s.userIDsByEmail[email] = user.ID
	return user, nil
}

func (s *Service) Authenticate(email, plainPassword string) (User, error) {
	s.mu.RLock()
	user, exists := s.users[s.userIDsByEmail[normalizeEmail(email)]]
	s.mu.RUnlock()

	if !exists || !VerifyPassword(user.PasswordHash, plainPassword) {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) GetUserByID(userID string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, exists := s.users[userID]
	return user, exists
}

// SetRole is the explicit admin promote/demote operation. It is the only
// way a staff role is granted after registration.
func (s *Service) SetRole(userID string, role Role) (User, error) {
	if !isKnownRole(role) {
		return User{}, ErrUnknownRole
	}
	return s.updateUser(userID, func(user *User) error {
		user.Role = role
		return nil
	})
}

// AttachShowroom links a user to a showroom and moves non-dealers onto the
// basic dealer role so they can act for it.
func (s *Service) AttachShowroom(userID, showroomID string) (User, error) {
	return s.updateUser(userID, func(user *User) error {
		if user.ShowroomID != nil && *user.ShowroomID != showroomID {
			return ErrShowroomAlreadyLinked
		}
		if user.Role != RoleDealerBasic && user.Role != RoleDealerPremium {
			user.Role = RoleDealerBasic
		}
		linked := showroomID
		user.ShowroomID = &linked
		return nil
	})
}

// DetachShowroom unlinks the user. The dealer role stays; without a
// showroom it grants nothing over showroom listings.
func (s *Service) DetachShowroom(userID string) (User, error) {
	return s.updateUser(userID, func(user *User) error {
		user.ShowroomID = nil
		return nil
	})
}

func (s *Service) updateUser(userID string, mutate func(*User) error) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return User{}, ErrUserNotFound
	}
	if err := mutate(&user); err != nil {
		return User{}, err
	}
	user.UpdatedAt = s.now()
	s.users[userID] = user
	return user, nil
}

// OpenSession stores the hash of a freshly issued refresh token.
func (s *Service) OpenSession(sessionID, userID, refreshToken string, expiresAt time.Time) Session {
	session := Session{
		ID:               sessionID,
		UserID:           userID,
		RefreshTokenHash: HashToken(refreshToken),
		ExpiresAt:        expiresAt,
	}
	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()
	return session
}

// ConsumeRefresh checks a refresh token against its session and closes the
// session, so every refresh token works exactly once.
func (s *Service) ConsumeRefresh(sessionID, userID, refreshToken string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.UserID != userID || session.RefreshTokenHash != HashToken(refreshToken) {
		return User{}, ErrSessionInvalid
	}
	delete(s.sessions, sessionID)

	if !session.ExpiresAt.After(s.now()) {
		return User{}, ErrSessionExpired
	}
	user, exists := s.users[userID]
	if !exists {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// RevokeSession closes a session owned by the user. Unknown or foreign
// sessions are ignored.
func (s *Service) RevokeSession(sessionID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, exists := s.sessions[sessionID]; exists && session.UserID == userID {
		delete(s.sessions, sessionID)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isSelfServiceRole(role Role) bool {
	for _, candidate := range SelfServiceRoles() {
		if candidate == role {
			return true
		}
	}
	return false
}
