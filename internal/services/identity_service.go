// Package services – IdentityService
//
// This file implements IdentityService: user registration, credential
// verification, bearer-token sessions and the role selector. Passwords are
// stored as bcrypt hashes and never logged. Authentication performs a bcrypt
// comparison even for unknown usernames so response timing does not reveal
// whether an account exists.
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-zerohunger-backend/internal/domain"
	"github.com/tbourn/go-zerohunger-backend/internal/repo"
)

const (
	minPasswordLen   = 6
	maxPasswordBytes = 72 // bcrypt input limit
	maxUsernameRunes = 64
)

// Login is the result of a successful register or authenticate call. Token is
// returned to the client once; only its digest is stored.
type Login struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// IdentityService owns users and their sessions.
type IdentityService struct {
	DB       *gorm.DB
	Users    UserRepo
	Sessions SessionStore

	BcryptCost int
	SessionTTL time.Duration
	Now        func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewIdentityService wires an IdentityService with the given cost and TTL.
func NewIdentityService(db *gorm.DB, users UserRepo, sessions SessionStore, bcryptCost int, ttl time.Duration) *IdentityService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdentityService{
		DB:         db,
		Users:      users,
		Sessions:   sessions,
		BcryptCost: bcryptCost,
		SessionTTL: ttl,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser registers a new account with the receiver role selected.
func (s *IdentityService) CreateUser(ctx context.Context, username, email, password string) (*domain.User, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "CreateUser")
	defer span.End()

	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameRunes {
		return nil, ErrInvalidInput
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	if len(password) > maxPasswordBytes {
		return nil, ErrInvalidInput
	}

	if _, found, err := s.FindByUsername(ctx, username); err != nil {
		return nil, err
	} else if found {
		return nil, ErrDuplicateIdentity
	}
	if _, found, err := s.FindByEmail(ctx, email); err != nil {
		return nil, err
	} else if found {
		return nil, ErrDuplicateIdentity
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CurrentRole:  domain.RoleReceiver,
	}
	if err := s.Users.CreateUser(ctx, s.DB, u); err != nil {
		// Lost a race with a concurrent registration.
		if repo.IsUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u, nil
}

// FindByID returns the user with id; absence is found=false, not an error.
func (s *IdentityService) FindByID(ctx context.Context, id string) (*domain.User, bool, error) {
	return found(s.Users.GetUserByID(ctx, s.DB, id))
}

// FindByUsername returns the user with the exact username.
func (s *IdentityService) FindByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	return found(s.Users.GetUserByUsername(ctx, s.DB, strings.TrimSpace(username)))
}

// FindByEmail returns the user with email (compared lower-cased).
func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*domain.User, bool, error) {
	return found(s.Users.GetUserByEmail(ctx, s.DB, normalizeEmail(email)))
}

func found(u *domain.User, err error) (*domain.User, bool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// VerifyCredential reports whether password matches the user's stored hash.
func (s *IdentityService) VerifyCredential(u *domain.User, password string) bool {
	if u == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Register creates the user and opens a session for it.
func (s *IdentityService) Register(ctx context.Context, username, email, password string) (*Login, error) {
	u, err := s.CreateUser(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

// Authenticate checks credentials and opens a session. Unknown usernames and
// wrong passwords both return ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*Login, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "Authenticate")
	defer span.End()

	u, ok, err := s.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if !s.VerifyCredential(u, password) {
		return nil, ErrInvalidCredentials
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return s.issue(ctx, u)
}

func (s *IdentityService) issue(ctx context.Context, u *domain.User) (*Login, error) {
	token, err := NewSessionToken()
	if err != nil {
		return nil, err
	}
	exp := s.Now().Add(s.SessionTTL)
	if err := s.Sessions.Create(ctx, TokenDigest(token), u.ID, exp); err != nil {
		return nil, err
	}
	return &Login{User: u, Token: token, ExpiresAt: exp}, nil
}

// dummy returns a hash of a random password at the configured cost, used to
// equalise timing for unknown usernames.
func (s *IdentityService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.BcryptCost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// ResolveSession returns the user owning token.
func (s *IdentityService) ResolveSession(ctx context.Context, token string) (*domain.User, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "ResolveSession")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	uid, err := s.Sessions.Lookup(ctx, TokenDigest(token))
	if err != nil {
		return nil, err
	}
	u, ok, err := s.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return u, nil
}

// Logout revokes the session behind token. Unknown tokens are ignored.
func (s *IdentityService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return s.Sessions.Revoke(ctx, TokenDigest(token))
}

// SwitchRole sets the user's role selector. The role is a UI routing hint and
// does not restrict which operations the user may call.
func (s *IdentityService) SwitchRole(ctx context.Context, userID, role string) (*domain.User, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "SwitchRole",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("role", role),
		),
	)
	defer span.End()

	r, ok := domain.ParseRole(strings.TrimSpace(role))
	if !ok {
		return nil, ErrInvalidInput
	}
	if err := s.Users.UpdateUserRole(ctx, s.DB, userID, r); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u, ok, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
