package auth

import (
	"context"
	"time"

	"fivebear-admin-go/internal/domain/events"
	"fivebear-admin-go/internal/platform/storage"
	"fivebear-admin-go/internal/utils"
)

// LoginResult is returned to the transport layer on a successful login.
type LoginResult struct {
	Token       string     `json:"token"`
	AccountID   uint       `json:"account_id"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// LockStatus describes the throttle state for one account.
type LockStatus struct {
	Locked            bool          `json:"isLocked"`
	RemainingAttempts int           `json:"remainingAttempts"`
	RetryAfter        time.Duration `json:"-"`
	Available         bool          `json:"securityServiceAvailable"`
}

// Service sequences the login, logout and validation workflows over the
// throttle, the token codec and the session registry. The throttle and the
// registry may become unreachable at runtime; login then degrades to
// unthrottled rather than failing closed.
type Service struct {
	users    storage.UserRepository
	codec    *TokenCodec
	throttle Throttle
	sessions *SessionRegistry
	bus      *events.Bus
	logger   *utils.Logger
}

// NewService wires the auth workflow.
func NewService(
	users storage.UserRepository,
	codec *TokenCodec,
	throttle Throttle,
	sessions *SessionRegistry,
	bus *events.Bus,
	logger *utils.Logger,
) *Service {
	if throttle == nil {
		throttle = NoopThrottle{}
	}
	return &Service{
		users:    users,
		codec:    codec,
		throttle: throttle,
		sessions: sessions,
		bus:      bus,
		logger:   logger,
	}
}

// Login runs the full state machine: lock check, credential check, failure
// accounting, token issuance, session install and displaced-session notify.
func (s *Service) Login(ctx context.Context, username, password, remoteIP string) (*LoginResult, error) {
	throttleOK := true
	locked, err := s.throttle.IsLocked(ctx, username)
	if err != nil {
		// Availability over strict lockout enforcement.
		throttleOK = false
		s.logger.WarnTag("AUTH", "login throttle unreachable, proceeding unthrottled: %v", err)
	}
	if locked {
		retry, err := s.throttle.LockRemaining(ctx, username)
		if err != nil {
			retry = 0
		}
		s.logger.WarnTag("AUTH", "login rejected for %s: account locked (%ds remaining)",
			username, int(retry.Seconds()))
		return nil, &LockoutError{RetryAfter: retry}
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, s.rejectCredentials(ctx, username, throttleOK)
	}
	if user.Status != storage.UserStatusActive {
		s.logger.WarnTag("AUTH", "login rejected for %s: account disabled", username)
		return nil, ErrAccountDisabled
	}
	if !s.users.VerifyCredential(user, password) {
		return nil, s.rejectCredentials(ctx, username, throttleOK)
	}

	if throttleOK {
		if err := s.throttle.ClearFailures(ctx, username); err != nil {
			s.logger.WarnTag("AUTH", "failed to clear failure counter for %s: %v", username, err)
		}
	}

	token, err := s.codec.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	prev, existed, err := s.sessions.SetActive(ctx, username, token)
	if err != nil {
		s.logger.WarnTag("AUTH", "session registry unreachable for %s, supersession not enforced: %v",
			username, err)
	} else if existed && prev != token {
		// The displaced session learns about it now; the registry overwrite
		// already made the old token invalid regardless of delivery.
		s.bus.Publish(events.TopicForceLogout, events.ForceLogoutEventData{
			Username: username,
			Reason:   "account signed in from another device",
		})
	}

	now := time.Now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnTag("AUTH", "failed to record last login for %s: %v", username, err)
	}

	s.bus.Publish(events.TopicLoginAccepted, events.LoginEventData{
		Username: user.Username,
		Role:     user.Role,
		LoginAt:  now,
		RemoteIP: remoteIP,
	})
	s.logger.InfoTag("AUTH", "login accepted for %s", username)

	lastLogin := user.LastLoginAt
	return &LoginResult{
		Token:       token,
		AccountID:   user.ID,
		Username:    user.Username,
		Role:        user.Role,
		LastLoginAt: lastLogin,
	}, nil
}

func (s *Service) rejectCredentials(ctx context.Context, username string, throttleOK bool) error {
	if !throttleOK {
		s.logger.WarnTag("AUTH", "login rejected for %s: invalid credentials (throttle degraded)", username)
		return &CredentialError{RemainingAttempts: 0}
	}

	remaining, lockedNow, err := s.throttle.RecordFailure(ctx, username)
	if err != nil {
		s.logger.WarnTag("AUTH", "failed to record login failure for %s: %v", username, err)
		return ErrInvalidCredentials
	}
	if lockedNow {
		retry, err := s.throttle.LockRemaining(ctx, username)
		if err != nil {
			retry = 0
		}
		s.logger.WarnTag("AUTH", "account %s locked after repeated failures", username)
		return &LockoutError{RetryAfter: retry}
	}
	s.logger.WarnTag("AUTH", "login rejected for %s: invalid credentials (%d attempts remaining)",
		username, remaining)
	return &CredentialError{RemainingAttempts: remaining}
}

// ValidateToken verifies signature and expiry, then requires the token to
// still be the account's active session. When the registry is unreachable
// the structural check alone decides, so valid callers are not locked out
// by a store outage.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	identity, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}

	active, err := s.sessions.IsActive(ctx, identity.AccountName, token)
	if err != nil {
		s.logger.WarnTag("AUTH", "session registry unreachable, accepting structurally valid token for %s: %v",
			identity.AccountName, err)
		return identity, nil
	}
	if !active {
		return nil, ErrTokenSuperseded
	}
	return identity, nil
}

// Logout clears the session pointer only when the presented token is still
// the active one; a logout with a superseded token is a harmless no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	identity, err := s.codec.Verify(token)
	if err != nil {
		return err
	}

	cleared, err := s.sessions.ClearIfMatches(ctx, identity.AccountName, token)
	if err != nil {
		return err
	}
	if cleared {
		s.logger.InfoTag("AUTH", "logout for %s", identity.AccountName)
	} else {
		s.logger.DebugTag("AUTH", "stale logout ignored for %s", identity.AccountName)
	}
	return nil
}

// LockStatus reports the throttle state for one account, flagging whether
// the security service itself is reachable.
func (s *Service) LockStatus(ctx context.Context, username string) *LockStatus {
	status := &LockStatus{Available: true}

	locked, err := s.throttle.IsLocked(ctx, username)
	if err != nil {
		status.Available = false
		status.RemainingAttempts = 0
		return status
	}
	status.Locked = locked

	if locked {
		if retry, err := s.throttle.LockRemaining(ctx, username); err == nil {
			status.RetryAfter = retry
		}
		return status
	}

	remaining, err := s.throttle.RemainingAttempts(ctx, username)
	if err != nil {
		status.Available = false
		return status
	}
	status.RemainingAttempts = remaining
	return status
}
