package phibia

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// refreshTimeout bounds a shared profile request once it no longer follows
// the caller that started it.
const refreshTimeout = 30 * time.Second

// AccountAPI is the part of Client a SessionContext needs.
type AccountAPI interface {
	Profile(ctx context.Context) (*UserInfo, error)
	Login(ctx context.Context, creds Credentials) (*UserInfo, error)
	Logout(ctx context.Context) error
	UpdateAvatar(ctx context.Context, avatarID int) error
	UpdateBackground(ctx context.Context, color string) error
}

// SessionContext holds the signed in user. It is shared by everything that
// shows or changes profile data.
//
// SetAvatar and SetBackground apply the change locally before the backend
// confirms it and roll back if the call fails. Concurrent Refresh calls share
// one profile request.
type SessionContext struct {
	api AccountAPI

	mu   sync.RWMutex
	user *UserInfo

	refresh singleflight.Group
	log     logger.Logger
}

// NewSessionContext creates an empty session.
func NewSessionContext(api AccountAPI) *SessionContext {
	return &SessionContext{
		api: api,
		log: logger.Global().Module("phibia").Module("session"),
	}
}

// User returns a copy of the current user, or nil when signed out.
func (s *SessionContext) User() *UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.clone()
}

// Refresh reloads the profile. An unauthenticated response clears the user.
func (s *SessionContext) Refresh(ctx context.Context) (*UserInfo, error) {
	// one caller giving up must not fail the others waiting on the same request
	ch := s.refresh.DoChan("profile", func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.api.Profile(shared)
	})

	var (
		v   any
		err error
	)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	if err != nil {
		if IsNotAuthenticated(err) {
			s.setUser(nil)
		}
		return nil, err
	}

	user := v.(*UserInfo)
	s.setUser(user)
	return user.clone(), nil
}

// Login signs in and stores the returned user.
func (s *SessionContext) Login(ctx context.Context, creds Credentials) (*UserInfo, error) {
	user, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	s.setUser(user)
	return user.clone(), nil
}

// Logout signs out. The local user is cleared regardless of the backend result.
func (s *SessionContext) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.setUser(nil)
	return err
}

// SetAvatar changes the avatar optimistically.
func (s *SessionContext) SetAvatar(ctx context.Context, avatarID int) error {
	if err := ValidateAvatarID(avatarID); err != nil {
		return err
	}

	previous := s.update(func(u *UserInfo) {
		id := avatarID
		u.AvatarID = &id
	})

	if err := s.api.UpdateAvatar(ctx, avatarID); err != nil {
		s.rollback(previous, func(u *UserInfo) { u.AvatarID = previous.AvatarID })
		s.log.Warn("avatar update failed, rolled back", logger.Int("avatar_id", avatarID), logger.Error(err))
		return err
	}
	return nil
}

// SetBackground changes the background colour optimistically.
func (s *SessionContext) SetBackground(ctx context.Context, color string) error {
	if err := ValidateBackgroundColor(color); err != nil {
		return err
	}

	previous := s.update(func(u *UserInfo) { u.BackgroundColor = color })

	if err := s.api.UpdateBackground(ctx, color); err != nil {
		s.rollback(previous, func(u *UserInfo) { u.BackgroundColor = previous.BackgroundColor })
		s.log.Warn("background update failed, rolled back", logger.String("color", color), logger.Error(err))
		return err
	}
	return nil
}

func (s *SessionContext) setUser(user *UserInfo) {
	s.mu.Lock()
	s.user = user.clone()
	s.mu.Unlock()
}

// update applies fn to the current user and returns the prior state.
// It is a no-op returning nil when signed out.
func (s *SessionContext) update(fn func(*UserInfo)) *UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	previous := s.user.clone()
	fn(s.user)
	return previous
}

// rollback restores one field from previous unless the user changed identity meanwhile.
func (s *SessionContext) rollback(previous *UserInfo, restore func(*UserInfo)) {
	if previous == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.ID != previous.ID {
		return
	}
	restore(s.user)
}

// IsNotAuthenticated reports whether err means the user must log in.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

var _ AccountAPI = (*Client)(nil)
