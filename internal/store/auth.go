package store

import (
	"context"
	"errors"
	"net/http"

	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/platform/apiclient"
)

// Login signs in and warms the role's collections. The returned error is
// the failure indicator; it is also recorded in state. A failed login leaves
// the session anonymous and every collection untouched. If the new token is
// rejected during the fan-out, the forced logout's session-expired error is
// returned.
func (s *Store) Login(ctx context.Context, username, password string) error {
	s.dispatch(LoginStarted{})

	res, err := s.backend.Login(ctx, username, password)
	if err != nil {
		s.logger.Info().Str("username", username).Err(err).Msg("login failed")
		s.dispatch(LoginFailed{Err: err})
		return err
	}

	s.dispatch(LoginSucceeded{User: res.User, Token: res.Token})
	s.logger.Info().
		Int64("user_id", res.User.ID).
		Str("role", string(res.User.Role)).
		Msg("signed in")

	s.FanOut(ctx, res.User.Role)
	// A fan-out fetch answered 401: the session was reset before the caller
	// could use it.
	if st := s.Snapshot(); st.Session.Status != Authenticated {
		if st.Err != nil {
			return st.Err
		}
		return apiclient.ErrSessionExpired
	}
	return nil
}

// Logout tells the server, ignoring failures, then resets all state.
// Calling it again is harmless.
func (s *Store) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("logout request failed")
	}
	s.dispatch(LoggedOut{})
}

// Restore adopts a persisted session at startup without asking the server
// and runs the same fan-out as Login. A rotated token is only discovered on
// the next 401. It reports whether a session was restored.
func (s *Store) Restore(ctx context.Context) bool {
	saved, ok := s.backend.Resume(ctx)
	if !ok {
		return false
	}
	s.dispatch(LoginSucceeded{User: saved.User, Token: saved.Token})
	s.logger.Info().Str("username", saved.User.Username).Msg("session restored")
	s.FanOut(ctx, saved.User.Role)
	return true
}

// RefreshProfile reloads the signed-in user from /users/me/.
func (s *Store) RefreshProfile(ctx context.Context) (identity.User, error) {
	epoch := s.currentEpoch()
	var u identity.User
	if err := s.backend.Do(ctx, apiclient.Request{Endpoint: apiclient.EndpointMe}, &u); err != nil {
		return identity.User{}, s.fail(epoch, err)
	}
	s.dispatchAt(epoch, ProfileRefreshed{User: u})
	return u, nil
}

// ForgotPassword asks the server to email a reset link. State is unchanged.
func (s *Store) ForgotPassword(ctx context.Context, email string) (string, error) {
	req := identity.PasswordResetRequest{Email: email}
	if err := check(req); err != nil {
		return "", err
	}
	var res struct {
		Message string `json:"message"`
	}
	err := s.backend.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: apiclient.EndpointForgotPassword,
		Body:     req,
	}, &res)
	return res.Message, err
}

// ResetPassword completes the reset flow. State is unchanged.
func (s *Store) ResetPassword(ctx context.Context, req identity.PasswordResetConfirm) (string, error) {
	if err := check(req); err != nil {
		return "", err
	}
	var res struct {
		Message string `json:"message"`
	}
	err := s.backend.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: apiclient.EndpointResetPassword,
		Body:     req,
	}, &res)
	return res.Message, err
}

// errNotSignedIn guards local-only operations that need a user.
var errNotSignedIn = errors.New("not signed in")
