package accounts

import (
	"errors"

	"flatnas/apperrors"
	"flatnas/config"
	"flatnas/db"
	"flatnas/pkg/logger"
	"flatnas/pkg/metrics"
	"flatnas/utils"
)

// Service owns credentials: login with throttling, registration and token
// based identity.
type Service struct {
	users    *db.UserStore
	mode     db.ModeSource
	tokens   *TokenIssuer
	throttle *LoginThrottle
	cost     int
}

func NewService(users *db.UserStore, mode db.ModeSource, cfg config.AuthConfig) *Service {
	return &Service{
		users:    users,
		mode:     mode,
		tokens:   NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL),
		throttle: NewLoginThrottle(cfg.MaxLoginAttempts, cfg.LockoutDuration),
		cost:     cfg.BcryptCost,
	}
}

type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login verifies credentials for the client at ip. Plaintext passwords that
// match are replaced by a bcrypt hash on the spot.
func (s *Service) Login(ip, username, password string) (*LoginResult, error) {
	if remaining := s.throttle.Locked(ip); remaining > 0 {
		metrics.RecordLoginAttempt("locked")
		return nil, apperrors.NewLoginLocked(ip, remaining)
	}

	if username == "" {
		username = db.AdminUsername
	}

	rec, err := s.users.Load(username)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			s.fail(ip)
			return nil, apperrors.NewAuthenticationError(username, "unknown user")
		}
		return nil, apperrors.NewInternalError("").WithOperation("login").WithInternal(err)
	}

	stored := rec.Password
	if stored == "" {
		stored = "admin"
	}

	if !utils.CheckPassword(stored, password) {
		s.fail(ip)
		return nil, apperrors.NewAuthenticationError(username, "wrong password")
	}

	if !utils.IsPasswordHash(stored) {
		s.upgradePassword(username, password)
	}

	s.throttle.Succeed(ip)

	token, err := s.tokens.Issue(username)
	if err != nil {
		return nil, apperrors.NewInternalError("").WithOperation("issue_token").WithInternal(err)
	}

	metrics.RecordLoginAttempt("success")
	logger.WithFields(map[string]any{"user": username, "ip": ip}).Info("login succeeded")

	return &LoginResult{Token: token, Username: username}, nil
}

func (s *Service) fail(ip string) {
	metrics.RecordLoginAttempt("failed")
	if s.throttle.Fail(ip) {
		metrics.IncrementLoginLockouts()
		logger.WithField("ip", ip).Warn("too many failed logins, locking client")
	}
}

// upgradePassword stores a hash in place of a matching plaintext password.
// A failure here does not fail the login; the upgrade is retried next time.
func (s *Service) upgradePassword(username, password string) {
	hash, appErr := utils.HashPassword(password, s.cost)
	if appErr != nil {
		logger.WithUser(username).WithError(appErr).Warn("password upgrade skipped: hashing failed")
		return
	}
	err := s.users.Update(username, func(rec *db.UserRecord) error {
		rec.Password = hash
		return nil
	})
	if err != nil {
		logger.WithUser(username).WithError(err).Warn("password upgrade skipped: save failed")
		return
	}
	logger.WithUser(username).Info("upgraded plaintext password to bcrypt")
}

// Register creates a new account seeded from the default template. It is only
// available in multi-user mode.
func (s *Service) Register(username, password string) error {
	if s.mode.AuthMode() == db.AuthModeSingle {
		return apperrors.NewRegistrationDisabled()
	}
	if username == "" || password == "" {
		return apperrors.NewBadRequest("Missing fields")
	}
	if appErr := utils.ValidateUsername(username); appErr != nil {
		return appErr
	}
	if s.users.Exists(username) {
		return apperrors.NewUserExists(username)
	}

	hash, appErr := utils.HashPassword(password, s.cost)
	if appErr != nil {
		return appErr
	}

	rec := s.users.DefaultTemplate()
	rec.Password = hash

	if err := s.users.Create(username, rec); err != nil {
		if errors.Is(err, db.ErrUserExists) {
			return apperrors.NewUserExists(username)
		}
		return apperrors.NewSaveFailed(username, err)
	}

	metrics.IncrementRegistrations()
	logger.WithUser(username).Info("registered new user")
	return nil
}

// HashPassword hashes with the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, appErr := utils.HashPassword(password, s.cost)
	if appErr != nil {
		return "", appErr
	}
	return hash, nil
}
