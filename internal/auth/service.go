// Package auth issues sessions. Login verifies credentials, consults
// the access gate, and signs a JWT carrying the restricted claim when a
// suspended user is admitted to resolve pending business.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"parqueo/internal/access"
	"parqueo/internal/platform/metrics"
	"parqueo/internal/user"
	dErrors "parqueo/pkg/domain-errors"
	"parqueo/pkg/platform/sentinel"
	"parqueo/pkg/requestcontext"
)

// Service authenticates users and issues session tokens.
type Service struct {
	users   user.Store
	gate    *access.Gate
	issuer  *TokenIssuer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(users user.Store, gate *access.Gate, issuer *TokenIssuer, opts ...Option) *Service {
	s := &Service{
		users:  users,
		gate:   gate,
		issuer: issuer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is a successful login result.
type Session struct {
	Token      string `json:"token"`
	UserID     string `json:"user_id"`
	Restricted bool   `json:"restricted"`
	ExpiresIn  int64  `json:"expires_in"`
}

// Login verifies the password, runs the access gate, and signs a
// session. A suspension without pending business surfaces as an
// account_locked error carrying the suspension end.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	now := requestcontext.Now(ctx)

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Same answer as a bad password; usernames are not probeable.
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "look up user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	decision, err := s.gate.Check(ctx, u.ID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeLocked) {
			if s.metrics != nil {
				s.metrics.LoginsLocked.Inc()
			}
			s.logger.Info("login refused, account suspended", "user_id", u.ID)
		}
		return nil, err
	}

	token, err := s.issuer.Issue(u.ID.String(), decision.Restricted, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "issue session")
	}

	s.logger.Info("login succeeded", "user_id", u.ID, "restricted", decision.Restricted)
	return &Session{
		Token:      token,
		UserID:     u.ID.String(),
		Restricted: decision.Restricted,
		ExpiresIn:  int64(s.issuer.TTL().Seconds()),
	}, nil
}
