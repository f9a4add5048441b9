package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"authd.io/internal/ids"
	"authd.io/internal/obs"
)

// Dependencies are the collaborators a Service orchestrates.
type Dependencies struct {
	Users    UserStore
	Ledger   RevocationLedger
	Hasher   PasswordHasher
	Issuer   *Issuer
	Verifier *Verifier
}

// Service runs the register, login, refresh, logout and password flows.
type Service struct {
	users    UserStore
	ledger   RevocationLedger
	hasher   PasswordHasher
	issuer   *Issuer
	verifier *Verifier
	policy   PasswordPolicy
	now      func() time.Time

	// revokeOnPasswordChange rejects tokens issued before the last password change.
	revokeOnPasswordChange bool

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithPolicy replaces the default password policy.
func WithPolicy(p PasswordPolicy) ServiceOption {
	return func(s *Service) error {
		if p.MinLength < 1 {
			return errors.New("auth: password policy min length must be positive")
		}
		s.policy = p
		return nil
	}
}

// WithRevokeOnPasswordChange makes a password change invalidate outstanding tokens.
func WithRevokeOnPasswordChange(enabled bool) ServiceOption {
	return func(s *Service) error {
		s.revokeOnPasswordChange = enabled
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(deps Dependencies, opts ...ServiceOption) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("auth: user store is required")
	case deps.Ledger == nil:
		return nil, errors.New("auth: revocation ledger is required")
	case deps.Hasher == nil:
		return nil, errors.New("auth: password hasher is required")
	case deps.Issuer == nil || deps.Verifier == nil:
		return nil, errors.New("auth: token issuer and verifier are required")
	}
	svc := &Service{
		users:    deps.Users,
		ledger:   deps.Ledger,
		hasher:   deps.Hasher,
		issuer:   deps.Issuer,
		verifier: deps.Verifier,
		policy:   DefaultPasswordPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Session is the result of a flow that hands out tokens.
type Session struct {
	User   *User
	Tokens TokenPair
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Email           string
	FullName        string
	Password        string
	PasswordConfirm string
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := NormalizeEmail(in.Email)
	fullName := strings.TrimSpace(in.FullName)

	verr := &ValidationError{}
	checkEmail(verr, "email", email, true)
	checkFullName(verr, "full_name", fullName, true)
	switch {
	case in.Password == "":
		verr.Add("password", msgRequired)
	case len([]rune(in.Password)) < minPasswordLen:
		verr.Add("password", msgTooShort(minPasswordLen))
	}
	if in.PasswordConfirm == "" {
		verr.Add("password2", msgRequired)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if in.Password != in.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}
	if err := s.policy.Validate(in.Password, email, fullName); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	pair, err := s.issuer.Issue(user.ID, user.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

// Login exchanges a credential for a token pair. Unknown email and wrong
// password both yield ErrInvalidCredentials after comparable work.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	verr := &ValidationError{}
	if email == "" {
		verr.Add("email", msgRequired)
	} else if !validEmail(email) {
		verr.Add("email", msgInvalidEmail)
	}
	if password == "" {
		verr.Add("password", msgRequired)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup email: %w", err)
		}
		_, _ = s.hasher.Verify(password, s.dummy())
		return nil, ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	now := s.now().UTC()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		obs.Logger().WarnContext(ctx, "touch_login_failed", "user_id", user.ID, "error", err.Error())
	} else {
		user.LastLogin = &now
	}

	pair, err := s.issuer.Issue(user.ID, user.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

// Refresh rotates a refresh token. The presented token is blacklisted before
// the new pair is minted, so a failure afterwards leaves it dead.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.verifier.Verify(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, claims, ReasonRotation); err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, claims)
	if err != nil {
		return nil, err
	}
	pair, err := s.issuer.Issue(user.ID, user.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

// Logout blacklists refreshToken, which must belong to userID.
func (s *Service) Logout(ctx context.Context, userID, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return ErrMissingToken
	}
	claims, err := s.verifier.Verify(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return err
	}
	if claims.Subject != userID {
		return ErrInvalidToken
	}
	return s.revoke(ctx, claims, ReasonLogout)
}

func (s *Service) revoke(ctx context.Context, claims *Claims, reason string) error {
	entry := RevocationEntry{
		JTI:       claims.ID,
		UserID:    claims.Subject,
		Reason:    reason,
		ExpiresAt: claims.ExpiresAt.Time,
		RevokedAt: s.now().UTC(),
	}
	if err := s.ledger.Blacklist(ctx, entry); err != nil {
		if errors.Is(err, ErrRevoked) {
			return ErrRevoked
		}
		return fmt.Errorf("blacklist token: %w", err)
	}
	obs.ObserveRevocation(reason)
	return nil
}

// Authenticate resolves the user behind an access token.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*User, *Claims, error) {
	claims, err := s.verifier.Verify(ctx, accessToken, TokenTypeAccess)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.activeUser(ctx, claims)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

func (s *Service) activeUser(ctx context.Context, claims *Claims) (*User, error) {
	if !ids.Valid(claims.Subject) {
		return nil, ErrInvalidToken
	}
	user, err := s.users.Find(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	if s.revokeOnPasswordChange && claims.Generation != user.TokenVersion {
		return nil, ErrRevoked
	}
	return user, nil
}

// ChangePasswordInput is the password change form.
type ChangePasswordInput struct {
	OldPassword        string
	NewPassword        string
	NewPasswordConfirm string
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" || in.NewPasswordConfirm == "" {
		verr := &ValidationError{}
		verr.Add("detail", "old_password, new_password, and new_password2 are required")
		return verr
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(in.OldPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrIncorrectPassword
	}
	if in.NewPassword != in.NewPasswordConfirm {
		return ErrPasswordMismatch
	}
	if err := s.policy.Validate(in.NewPassword, user.Email, user.FullName); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, user.ID, hash, s.now().UTC())
}

// Profile returns the stored user.
func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	return s.users.Find(ctx, userID)
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	verr := &ValidationError{}
	var email, fullName string
	if upd.Email != nil {
		email = NormalizeEmail(*upd.Email)
		checkEmail(verr, "email", email, false)
	}
	if upd.FullName != nil {
		fullName = strings.TrimSpace(*upd.FullName)
		checkFullName(verr, "full_name", fullName, false)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil && email != user.Email {
		other, err := s.users.FindByEmail(ctx, email)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, ErrDuplicateEmail
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("lookup email: %w", err)
		}
		user.Email = email
	}
	if upd.FullName != nil {
		user.FullName = fullName
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser provisions an account directly, bypassing the registration
// form. Used by operator tooling.
func (s *Service) CreateUser(ctx context.Context, email, fullName, password string, staff bool) (*User, error) {
	email = NormalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	verr := &ValidationError{}
	checkEmail(verr, "email", email, true)
	if fullName != "" {
		checkFullName(verr, "full_name", fullName, false)
	}
	if password == "" {
		verr.Add("password", msgRequired)
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := s.policy.Validate(password, email, fullName); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &User{Email: email, FullName: fullName, PasswordHash: hash, IsActive: true, IsStaff: staff}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetActive activates or deactivates the account registered under email.
// A deactivated user can no longer log in, refresh or authenticate.
func (s *Service) SetActive(ctx context.Context, email string, active bool) (*User, error) {
	email = NormalizeEmail(email)
	verr := &ValidationError{}
	checkEmail(verr, "email", email, true)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetActive(ctx, user.ID, active); err != nil {
		return nil, err
	}
	user.IsActive = active
	return user, nil
}

// PurgeRevocations drops ledger entries for tokens that expired before now.
func (s *Service) PurgeRevocations(ctx context.Context) (int64, error) {
	return s.ledger.Purge(ctx, s.now().UTC())
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("authd-timing-equalizer")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
