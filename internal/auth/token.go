package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BradenHooton/carepoint/internal/config"
	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the bearer token payload.
type Claims struct {
	Role     models.Role `json:"role"`
	Username string      `json:"username"`
	// PasswordVersion is the account's password_changed_at in microseconds
	// when the token was minted.
	PasswordVersion int64 `json:"pwv"`
	jwt.RegisteredClaims
}

// TokenManager issues and parses bearer tokens with a single pinned algorithm.
type TokenManager struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	expiry    time.Duration
	now       func() time.Time
}

func NewHMACTokenManager(secret, issuer string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		method:    jwt.SigningMethodHS256,
		signKey:   []byte(secret),
		verifyKey: []byte(secret),
		issuer:    issuer,
		expiry:    expiry,
		now:       time.Now,
	}
}

func NewRSATokenManager(privatePEM, publicPEM []byte, issuer string, expiry time.Duration) (*TokenManager, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	return &TokenManager{
		method:    jwt.SigningMethodRS256,
		signKey:   priv,
		verifyKey: pub,
		issuer:    issuer,
		expiry:    expiry,
		now:       time.Now,
	}, nil
}

// NewTokenManagerFromConfig picks RS256 when a key pair is configured and HS256 otherwise.
func NewTokenManagerFromConfig(cfg *config.AuthConfig) (*TokenManager, error) {
	if !cfg.UsesRSA() {
		return NewHMACTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenExpiry), nil
	}

	priv, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT private key: %w", err)
	}
	pub, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWT public key: %w", err)
	}
	return NewRSATokenManager(priv, pub, cfg.JWTIssuer, cfg.TokenExpiry)
}

// WithClock replaces the time source. Intended for tests.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	tm.now = now
	return tm
}

func (tm *TokenManager) Algorithm() string {
	return tm.method.Alg()
}

// Issue signs a token for admin, binding it to the current password version.
func (tm *TokenManager) Issue(admin *models.Admin) (string, time.Time, error) {
	issuedAt := tm.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(tm.expiry)

	claims := &Claims{
		Role:            admin.Role,
		Username:        admin.Username,
		PasswordVersion: PasswordVersion(admin.PasswordChangedAt),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   admin.ID,
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(tm.method, claims)
	signed, err := token.SignedString(tm.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse checks signature, algorithm, issuer and expiry. It returns
// models.ErrTokenExpired or models.ErrTokenInvalid on failure.
func (tm *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			return tm.verifyKey, nil
		},
		jwt.WithValidMethods([]string{tm.method.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, models.ErrTokenInvalid
	}

	return claims, nil
}

// AccountFetcher loads the account a token refers to.
type AccountFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Admin, error)
}

// Verifier combines token parsing with the account checks that make a
// stateless token revocable.
type Verifier struct {
	tokens   *TokenManager
	accounts AccountFetcher
}

func NewVerifier(tokens *TokenManager, accounts AccountFetcher) *Verifier {
	return &Verifier{tokens: tokens, accounts: accounts}
}

func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.Principal, error) {
	claims, err := v.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}

	admin, err := v.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load token account: %w", err)
	}
	if !admin.IsActive {
		return nil, models.ErrAccountInactive
	}

	if claims.PasswordVersion != PasswordVersion(admin.PasswordChangedAt) {
		return nil, models.ErrPasswordChangedSince
	}

	return &models.Principal{
		AccountID: admin.ID,
		Username:  admin.Username,
		Role:      admin.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
	}, nil
}

// PasswordChangedAt returns the timestamp stored on a password change at now,
// at the microsecond precision Postgres keeps.
func PasswordChangedAt(now time.Time) time.Time {
	return now.UTC().Truncate(time.Microsecond)
}

// PasswordVersion is the value tokens carry for changedAt. Any later change
// yields a different version, so earlier tokens stop verifying.
func PasswordVersion(changedAt time.Time) int64 {
	return changedAt.UnixMicro()
}
