package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/carepoint/internal/auth"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/BradenHooton/carepoint/internal/notify"
	"github.com/BradenHooton/carepoint/internal/observability"
	pkgauth "github.com/BradenHooton/carepoint/pkg/auth"
	pkglogger "github.com/BradenHooton/carepoint/pkg/logger"
)

// casRetries bounds how often a lockout update is retried after losing a race.
const casRetries = 3

// AdminStore defines the credential store operations used by AuthService
type AdminStore interface {
	GetByID(ctx context.Context, id string) (*models.Admin, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Admin, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName, email string) (*models.Admin, error)
	UpdatePassword(ctx context.Context, id, hash string, changedAt time.Time) error
	CompareAndSetLockout(ctx context.Context, id string, prev, next models.LockoutState) (bool, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
	SetMFA(ctx context.Context, id, sealedSecret string, enabled bool) error
	SetPasswordReset(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByResetHash(ctx context.Context, tokenHash string, now time.Time) (*models.Admin, error)
}

// TokenIssuer mints bearer tokens for an account.
type TokenIssuer interface {
	Issue(admin *models.Admin) (string, time.Time, error)
}

// AuthConfig collects the tunables AuthService needs from configuration.
type AuthConfig struct {
	Lockout          auth.LockoutPolicy
	ResetURLBase     string
	ResetTokenExpiry time.Duration
}

// AuthService handles admin authentication business logic
type AuthService struct {
	accounts    AdminStore
	hasher      *pkgauth.Hasher
	tokens      TokenIssuer
	totp        *auth.TOTPManager
	timing      *auth.TimingDelay
	dispatcher  notify.Dispatcher
	cfg         AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

// NewAuthService creates a new AuthService. totp may be nil, which disables MFA enrollment.
func NewAuthService(
	accounts AdminStore,
	hasher *pkgauth.Hasher,
	tokens TokenIssuer,
	totp *auth.TOTPManager,
	timing *auth.TimingDelay,
	dispatcher notify.Dispatcher,
	cfg AuthConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	if cfg.Lockout.Threshold == 0 {
		cfg.Lockout = auth.DefaultLockoutPolicy()
	}
	if cfg.ResetTokenExpiry == 0 {
		cfg.ResetTokenExpiry = 10 * time.Minute
	}
	return &AuthService{
		accounts:    accounts,
		hasher:      hasher,
		tokens:      tokens,
		totp:        totp,
		timing:      timing,
		dispatcher:  dispatcher,
		cfg:         cfg,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// WithClock replaces the service clock; used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// LoginInput is a single login attempt.
type LoginInput struct {
	Identifier string
	Password   string
	OTP        string
	IPAddress  string
	UserAgent  string
}

// LoginResult is returned on successful login and password change.
type LoginResult struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
	ExpiresIn int64               `json:"expiresIn"`
	Admin     models.AdminSummary `json:"admin"`
}

func (s *AuthService) newLoginResult(admin *models.Admin) (*LoginResult, error) {
	token, expiresAt, err := s.tokens.Issue(admin)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(expiresAt.Sub(s.now()).Seconds()),
		Admin:     admin.Summary(),
	}, nil
}

// Login authenticates an admin. Unknown identifiers, inactive accounts and
// wrong passwords return the same models.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	start := time.Now()
	identifier := strings.TrimSpace(in.Identifier)

	event := pkglogger.AuditEvent{
		EventType:  "login_failed",
		Identifier: identifier,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
	}

	if identifier == "" || in.Password == "" {
		s.hasher.DummyCompare(in.Password)
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	admin, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to load account for login", slog.Any("error", err))
			return nil, fmt.Errorf("load account: %w", err)
		}
		s.hasher.DummyCompare(in.Password)
		event.FailureReason = "unknown_account"
		s.auditLogger.LogAuthAttempt(ctx, event)
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}
	event.AccountID = admin.ID

	if !admin.IsActive {
		s.hasher.DummyCompare(in.Password)
		event.FailureReason = "account_inactive"
		s.auditLogger.LogAuthAttempt(ctx, event)
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.cfg.Lockout.Check(admin.Lockout, now); err != nil {
		event.FailureReason = "account_locked"
		s.auditLogger.LogAuthAttempt(ctx, event)
		s.timing.WaitFrom(start, false)
		return nil, err
	}

	if err := pkgauth.ComparePassword(admin.PasswordHash, in.Password); err != nil {
		event.FailureReason = "invalid_password"
		if ferr := s.registerFailure(ctx, admin, now, in.IPAddress); ferr != nil {
			return nil, ferr
		}
		s.auditLogger.LogAuthAttempt(ctx, event)
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	if admin.MFAEnabled {
		if err := s.checkLoginOTP(ctx, admin, in, now, event, start); err != nil {
			return nil, err
		}
	}

	if err := s.accounts.RecordLogin(ctx, admin.ID, now); err != nil {
		s.logger.Error("failed to record login", slog.String("account_id", admin.ID), slog.Any("error", err))
		return nil, fmt.Errorf("record login: %w", err)
	}
	admin.LastLoginAt = &now
	admin.Lockout = s.cfg.Lockout.RegisterSuccess()

	result, err := s.newLoginResult(admin)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("account_id", admin.ID), slog.Any("error", err))
		return nil, err
	}

	event.EventType = "login_success"
	event.Success = true
	s.auditLogger.LogAuthAttempt(ctx, event)
	s.logger.Info("admin logged in", slog.String("account_id", admin.ID))
	s.timing.WaitFrom(start, true)
	return result, nil
}

func (s *AuthService) checkLoginOTP(ctx context.Context, admin *models.Admin, in LoginInput, now time.Time, event pkglogger.AuditEvent, start time.Time) error {
	if s.totp == nil {
		s.logger.Error("account has MFA enabled but MFA_ENCRYPTION_KEY is not set", slog.String("account_id", admin.ID))
		return models.ErrMFANotConfigured
	}

	code := strings.TrimSpace(in.OTP)
	if code == "" {
		event.FailureReason = "mfa_required"
		s.auditLogger.LogAuthAttempt(ctx, event)
		s.timing.WaitFrom(start, false)
		return models.ErrMFARequired
	}

	valid, err := s.totp.Validate(admin.MFASecret, code, now)
	if err != nil {
		s.logger.Error("failed to open MFA secret", slog.String("account_id", admin.ID), slog.Any("error", err))
		return fmt.Errorf("validate otp: %w", err)
	}
	if valid {
		return nil
	}

	event.FailureReason = "invalid_mfa_code"
	if ferr := s.registerFailure(ctx, admin, now, in.IPAddress); ferr != nil {
		return ferr
	}
	s.auditLogger.LogAuthAttempt(ctx, event)
	s.timing.WaitFrom(start, false)
	return models.ErrInvalidMFACode
}

// registerFailure advances the lockout counter with compare-and-set so that
// concurrent failures each count once.
func (s *AuthService) registerFailure(ctx context.Context, admin *models.Admin, now time.Time, ip string) error {
	current := admin
	for attempt := 0; attempt < casRetries; attempt++ {
		next, engaged := s.cfg.Lockout.RegisterFailure(current.Lockout, now)

		ok, err := s.accounts.CompareAndSetLockout(ctx, current.ID, current.Lockout, next)
		if err != nil {
			s.logger.Error("failed to persist lockout state", slog.String("account_id", current.ID), slog.Any("error", err))
			return fmt.Errorf("persist lockout: %w", err)
		}
		if ok {
			admin.Lockout = next
			if engaged {
				s.auditLogger.LogLockout(ctx, current.ID, ip, *next.LockedUntil)
				s.logger.Warn("account locked",
					slog.String("account_id", current.ID),
					slog.Time("locked_until", *next.LockedUntil))
			}
			return nil
		}

		current, err = s.accounts.GetByID(ctx, admin.ID)
		if err != nil {
			return fmt.Errorf("reload account after lockout race: %w", err)
		}
		// A concurrent attempt already engaged the lock; locked accounts do not count further.
		if s.cfg.Lockout.Check(current.Lockout, now) != nil {
			admin.Lockout = current.Lockout
			return nil
		}
	}

	s.logger.Warn("lockout update lost every race", slog.String("account_id", admin.ID))
	return nil
}

func (s *AuthService) Profile(ctx context.Context, accountID string) (*models.Admin, error) {
	admin, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return admin, nil
}

// ProfileUpdate is a self-service profile change. Empty fields keep the stored value.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Email     string
}

func (s *AuthService) UpdateProfile(ctx context.Context, accountID string, u ProfileUpdate) (*models.Admin, error) {
	current, err := s.Profile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	first := firstNonEmpty(strings.TrimSpace(u.FirstName), current.FirstName)
	last := firstNonEmpty(strings.TrimSpace(u.LastName), current.LastName)
	email := firstNonEmpty(strings.ToLower(strings.TrimSpace(u.Email)), current.Email)

	updated, err := s.accounts.UpdateProfile(ctx, accountID, first, last, email)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.auditLogger.LogAccountAction(ctx, "profile_updated", accountID, accountID, nil)
	return updated, nil
}

// ChangePassword verifies the current password, stores the new hash and
// returns a fresh token. Tokens issued before the change stop verifying.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword, ip string) (*LoginResult, error) {
	admin, err := s.Profile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := pkgauth.ComparePassword(admin.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(ctx, accountID, ip, false)
		return nil, models.ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		ve := models.NewValidationError()
		ve.Add("newPassword", "must differ from the current password")
		return nil, ve
	}

	if err := s.setPassword(ctx, admin, newPassword); err != nil {
		return nil, err
	}
	s.auditLogger.LogPasswordChange(ctx, accountID, ip, true)

	return s.newLoginResult(admin)
}

func (s *AuthService) setPassword(ctx context.Context, admin *models.Admin, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		ve := models.NewValidationError()
		ve.Add("newPassword", err.Error())
		return ve
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := auth.PasswordChangedAt(s.now())
	if err := s.accounts.UpdatePassword(ctx, admin.ID, hash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	admin.PasswordHash = hash
	admin.PasswordChangedAt = changedAt
	admin.Lockout = models.LockoutState{}
	return nil
}

// ForgotPassword emails a single-use reset link when email belongs to an
// active account. It reports success either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	admin, err := s.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}
	if !admin.IsActive {
		return nil
	}

	token, digest, err := pkgauth.GenerateResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.cfg.ResetTokenExpiry)
	if err := s.accounts.SetPasswordReset(ctx, admin.ID, digest, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg := notify.NewMessage(notify.KindPasswordReset, admin.Email, map[string]string{
		"name":      admin.FirstName,
		"resetURL":  strings.TrimRight(s.cfg.ResetURLBase, "/") + "/" + token,
		"expiresIn": s.cfg.ResetTokenExpiry.String(),
	})
	if err := s.dispatcher.Enqueue(ctx, msg); err != nil {
		s.logger.Error("failed to enqueue password reset email", slog.String("account_id", admin.ID), slog.Any("error", err))
		observability.CaptureError(ctx, err, map[string]string{"component": "notify", "kind": string(msg.Kind)})
	}

	s.auditLogger.LogAccountAction(ctx, "password_reset_requested", admin.ID, admin.ID, nil)
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.ErrResetTokenInvalid
	}

	admin, err := s.accounts.GetByResetHash(ctx, pkgauth.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrResetTokenInvalid
		}
		return fmt.Errorf("load reset token: %w", err)
	}

	if err := s.setPassword(ctx, admin, newPassword); err != nil {
		return err
	}
	s.auditLogger.LogPasswordChange(ctx, admin.ID, "", true)
	return nil
}

// SetupMFA generates a new secret and stores it sealed but not yet enabled.
func (s *AuthService) SetupMFA(ctx context.Context, accountID string) (*auth.Enrollment, error) {
	if s.totp == nil {
		return nil, models.ErrMFANotConfigured
	}
	admin, err := s.Profile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if admin.MFAEnabled {
		return nil, models.ErrConflict
	}

	enrollment, err := s.totp.Enroll(admin.Username)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.SetMFA(ctx, admin.ID, enrollment.Sealed, false); err != nil {
		return nil, fmt.Errorf("store mfa secret: %w", err)
	}
	return enrollment, nil
}

// EnableMFA confirms enrollment with a code from the authenticator.
func (s *AuthService) EnableMFA(ctx context.Context, accountID, code string) error {
	if s.totp == nil {
		return models.ErrMFANotConfigured
	}
	admin, err := s.Profile(ctx, accountID)
	if err != nil {
		return err
	}
	if admin.MFAEnabled {
		return models.ErrConflict
	}
	if admin.MFASecret == "" {
		return models.ErrBadRequest
	}

	valid, err := s.totp.Validate(admin.MFASecret, strings.TrimSpace(code), s.now())
	if err != nil {
		return fmt.Errorf("validate otp: %w", err)
	}
	if !valid {
		return models.ErrInvalidMFACode
	}

	if err := s.accounts.SetMFA(ctx, admin.ID, admin.MFASecret, true); err != nil {
		return fmt.Errorf("enable mfa: %w", err)
	}
	s.auditLogger.LogAccountAction(ctx, "mfa_enabled", admin.ID, admin.ID, nil)
	return nil
}

// DisableMFA requires both the password and a current code.
func (s *AuthService) DisableMFA(ctx context.Context, accountID, password, code string) error {
	if s.totp == nil {
		return models.ErrMFANotConfigured
	}
	admin, err := s.Profile(ctx, accountID)
	if err != nil {
		return err
	}
	if !admin.MFAEnabled {
		return models.ErrBadRequest
	}

	if err := pkgauth.ComparePassword(admin.PasswordHash, password); err != nil {
		return models.ErrInvalidCredentials
	}
	valid, err := s.totp.Validate(admin.MFASecret, strings.TrimSpace(code), s.now())
	if err != nil {
		return fmt.Errorf("validate otp: %w", err)
	}
	if !valid {
		return models.ErrInvalidMFACode
	}

	if err := s.accounts.SetMFA(ctx, admin.ID, "", false); err != nil {
		return fmt.Errorf("disable mfa: %w", err)
	}
	s.auditLogger.LogAccountAction(ctx, "mfa_disabled", admin.ID, admin.ID, nil)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
