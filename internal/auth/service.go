// Package auth handles login sessions and role-based access for the HTTP
// surface.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/storage"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	ErrSessionInvalid     = fmt.Errorf("invalid or expired session: %w", apperr.ErrUnauthorized)
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

var defaultPolicies = [][]string{
	{RoleAdmin, "*", "*"},
	{RoleCustomer, "bills", "read"},
	{RoleCustomer, "predictions", "read"},
}

type Service struct {
	storage  storage.Storage
	enforcer *casbin.Enforcer
	ttl      time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewService loads the stored policy, installing the default role policies
// when storage holds none.
func NewService(ctx context.Context, s storage.Storage, ttl time.Duration, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m, NewAdapter(s))
	if err != nil {
		return nil, err
	}

	rules, err := s.LoadCasbinRules(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		for _, p := range defaultPolicies {
			if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
				return nil, fmt.Errorf("install default policy: %w", err)
			}
		}
		log.Info("installed default access policy", zap.Int("rules", len(defaultPolicies)))
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{storage: s, enforcer: e, ttl: ttl, now: time.Now, log: log.Named("auth")}, nil
}

// Register stores a user with a bcrypt hash of password.
func (s *Service) Register(ctx context.Context, u storage.User, password string) error {
	if u.Role != RoleAdmin && u.Role != RoleCustomer {
		return fmt.Errorf("role %q: %w", u.Role, apperr.ErrInvalidArgument)
	}
	if strings.TrimSpace(u.NationalID) == "" || password == "" {
		return fmt.Errorf("national id and password are required: %w", apperr.ErrInvalidArgument)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	return s.storage.CreateUser(ctx, u)
}

// Login checks the password and opens a session. The raw token is returned
// once; only its hash is stored.
func (s *Service) Login(ctx context.Context, nationalID, password string) (string, *storage.Session, error) {
	u, err := s.storage.GetUser(ctx, strings.TrimSpace(nationalID))
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	rawToken := uuid.New().String() + uuid.New().String()
	now := s.now().UTC()
	sess := storage.Session{
		ID:        uuid.New().String(),
		UserID:    u.NationalID,
		TokenHash: hashToken(rawToken),
		Role:      u.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.storage.CreateSession(ctx, sess); err != nil {
		return "", nil, err
	}
	s.log.Info("login", zap.String("user", u.NationalID), zap.String("role", u.Role))
	return rawToken, &sess, nil
}

// Authenticate resolves a raw token to its live session. Expired sessions
// are removed.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*storage.Session, error) {
	if rawToken == "" {
		return nil, ErrSessionInvalid
	}
	sess, err := s.storage.GetSessionByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionInvalid
	}
	if !sess.ExpiresAt.After(s.now()) {
		if err := s.storage.DeleteSession(ctx, sess.ID); err != nil {
			s.log.Warn("failed to drop expired session", zap.Error(err))
		}
		return nil, ErrSessionInvalid
	}
	return sess, nil
}

// Logout ends the session behind rawToken. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	sess, err := s.storage.GetSessionByHash(ctx, hashToken(rawToken))
	if err != nil || sess == nil {
		return err
	}
	return s.storage.DeleteSession(ctx, sess.ID)
}

// Enforce reports whether role may perform act on obj.
func (s *Service) Enforce(role, obj, act string) (bool, error) {
	return s.enforcer.Enforce(role, obj, act)
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, apperr.ErrUnauthorized)
}
