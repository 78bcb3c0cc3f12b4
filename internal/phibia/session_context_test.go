package phibia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccount struct {
	profile      *UserInfo
	profileErr   error
	profileCalls atomic.Int32
	profileGate  chan struct{}

	updateErr error

	mu       sync.Mutex
	observed []*UserInfo
	session  *SessionContext
}

func (f *fakeAccount) Profile(ctx context.Context) (*UserInfo, error) {
	f.profileCalls.Add(1)
	if f.profileGate != nil {
		select {
		case <-f.profileGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile.clone(), nil
}

func (f *fakeAccount) Login(_ context.Context, creds Credentials) (*UserInfo, error) {
	if creds.Password != "secreto" {
		return nil, &ServerError{Status: http.StatusUnauthorized, Message: "Wrong password or email"}
	}
	return f.profile.clone(), nil
}

func (f *fakeAccount) Logout(context.Context) error {
	return errors.New("backend down")
}

func (f *fakeAccount) UpdateAvatar(context.Context, int) error {
	f.record()
	return f.updateErr
}

func (f *fakeAccount) UpdateBackground(context.Context, string) error {
	f.record()
	return f.updateErr
}

// record captures the user visible while the backend call is in flight.
func (f *fakeAccount) record() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != nil {
		f.observed = append(f.observed, f.session.User())
	}
}

func intPtr(v int) *int { return &v }

func TestSessionContext_LoginLogout(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{profile: &UserInfo{ID: 9, Name: "Ana", AvatarID: intPtr(1)}}
	s := NewSessionContext(api)
	assert.Nil(t, s.User())

	_, err := s.Login(t.Context(), Credentials{Email: "ana@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Nil(t, s.User())

	user, err := s.Login(t.Context(), Credentials{Email: "ana@example.com", Password: "secreto"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	require.NotNil(t, s.User())

	// User returns a copy
	s.User().Name = "mutated"
	assert.Equal(t, "Ana", s.User().Name)

	assert.Error(t, s.Logout(t.Context()))
	assert.Nil(t, s.User(), "logout clears the user even when the backend fails")
}

func TestSessionContext_OptimisticAvatar(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{profile: &UserInfo{ID: 9, AvatarID: intPtr(1)}}
	s := NewSessionContext(api)
	api.session = s
	_, err := s.Refresh(t.Context())
	require.NoError(t, err)

	require.NoError(t, s.SetAvatar(t.Context(), 3))
	assert.Equal(t, 3, *s.User().AvatarID)
	require.Len(t, api.observed, 1)
	assert.Equal(t, 3, *api.observed[0].AvatarID, "change is visible before the backend answers")
}

func TestSessionContext_RollbackOnFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{
		profile:   &UserInfo{ID: 9, AvatarID: intPtr(1), BackgroundColor: "#112233"},
		updateErr: &ServerError{Status: http.StatusInternalServerError, Message: "boom"},
	}
	s := NewSessionContext(api)
	api.session = s
	_, err := s.Refresh(t.Context())
	require.NoError(t, err)

	err = s.SetAvatar(t.Context(), 4)
	require.Error(t, err)
	assert.Equal(t, 1, *s.User().AvatarID)

	err = s.SetBackground(t.Context(), "#abcdef")
	require.Error(t, err)
	assert.Equal(t, "#112233", s.User().BackgroundColor)

	require.Len(t, api.observed, 2)
	assert.Equal(t, 4, *api.observed[0].AvatarID)
	assert.Equal(t, "#abcdef", api.observed[1].BackgroundColor)
}

func TestSessionContext_Validation(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{profile: &UserInfo{ID: 9}}
	s := NewSessionContext(api)

	assert.Error(t, s.SetAvatar(t.Context(), 7))
	assert.Error(t, s.SetBackground(t.Context(), "blue"))
	assert.Empty(t, api.observed)
}

func TestSessionContext_SignedOutUpdate(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{updateErr: fmt.Errorf("offline")}
	s := NewSessionContext(api)

	assert.Error(t, s.SetAvatar(t.Context(), 2))
	assert.Nil(t, s.User())
}

func TestSessionContext_RefreshShared(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{profile: &UserInfo{ID: 9, Name: "Ana"}, profileGate: make(chan struct{})}
	s := NewSessionContext(api)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := s.Refresh(t.Context())
			assert.NoError(t, err)
			assert.Equal(t, "Ana", user.Name)
		}()
	}

	// let every caller join the in-flight request
	assert.Eventually(t, func() bool { return api.profileCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(api.profileGate)
	wg.Wait()

	assert.Equal(t, int32(1), api.profileCalls.Load())
}

func TestSessionContext_RefreshCancelDoesNotFailOthers(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{profile: &UserInfo{ID: 9, Name: "Ana"}, profileGate: make(chan struct{})}
	s := NewSessionContext(api)

	firstCtx, cancelFirst := context.WithCancel(t.Context())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Refresh(firstCtx)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return api.profileCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		user *UserInfo
		err  error
	}
	second := make(chan outcome, 1)
	go func() {
		user, err := s.Refresh(t.Context())
		second <- outcome{user, err}
	}()
	// let the second caller join the in-flight request
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled Refresh did not return")
	}

	close(api.profileGate)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, "Ana", got.user.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("second Refresh did not return")
	}
	assert.Equal(t, int32(1), api.profileCalls.Load())
	assert.Equal(t, "Ana", s.User().Name)
}

func TestSessionContext_RefreshNotAuthenticatedClearsUser(t *testing.T) {
	t.Parallel()

	api := &fakeAccount{profile: &UserInfo{ID: 9}}
	s := NewSessionContext(api)
	_, err := s.Refresh(t.Context())
	require.NoError(t, err)
	require.NotNil(t, s.User())

	api.profileErr = fmt.Errorf("%w: get_profile", ErrNotAuthenticated)
	_, err = s.Refresh(t.Context())
	require.Error(t, err)
	assert.Nil(t, s.User())

	// other failures keep the user
	api.profileErr = nil
	_, err = s.Refresh(t.Context())
	require.NoError(t, err)
	api.profileErr = errors.New("network down")
	_, err = s.Refresh(t.Context())
	require.Error(t, err)
	assert.NotNil(t, s.User())
}
