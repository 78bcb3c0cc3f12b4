package phibia

import (
	"context"
	"net/http"
	"strings"

	"github.com/phibia-app/phibia-go/internal/errors"
	"github.com/phibia-app/phibia-go/internal/logger"
)

// SessionCookie is the cookie the backend issues on login.
const SessionCookie = "access_token_cookie"

// Credentials for /login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration for /register.
type Registration struct {
	Name     string `json:"nombre_usuario"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message  string    `json:"message"`
	UserInfo *UserInfo `json:"user_info"`
}

type verifyResponse struct {
	Valid    bool      `json:"valid"`
	UserInfo *UserInfo `json:"user_info"`
}

// Login authenticates and persists the session cookie.
// A 401 surfaces the backend's message, e.g. "Wrong password or email".
func (c *Client) Login(ctx context.Context, creds Credentials) (*UserInfo, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, errors.Newf("email and password are required").
			Component("phibia-api").
			Category(errors.CategoryValidation).
			Build()
	}

	var out loginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, c.endpoint("login"), creds, &out, false); err != nil {
		return nil, err
	}

	c.persistSession()
	c.log.Info("logged in", logger.String("message", out.Message))
	if out.UserInfo == nil {
		return &UserInfo{Email: creds.Email}, nil
	}
	return out.UserInfo, nil
}

// Register creates an account. The backend answers 201 on success.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		return errors.Newf("name, email and password are required").
			Component("phibia-api").
			Category(errors.CategoryValidation).
			Build()
	}
	return c.doJSON(ctx, "register", http.MethodPost, c.endpoint("register"), reg, nil, false)
}

// VerifyToken checks the stored session. It returns nil user and false when
// the session is missing or expired.
func (c *Client) VerifyToken(ctx context.Context) (*UserInfo, bool, error) {
	var out verifyResponse
	err := c.doJSON(ctx, "verify_token", http.MethodGet, c.endpoint("verify-token"), nil, &out, true)
	if errors.Is(err, ErrNotAuthenticated) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !out.Valid {
		return nil, false, nil
	}
	return out.UserInfo, true, nil
}

// Logout ends the session on the backend and forgets the local cookie.
// The local session is cleared even when the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, "logout", http.MethodPost, c.endpoint("logout"), nil, nil, false)
	c.clearSession()
	return err
}

// LoggedIn reports whether a session cookie is held.
func (c *Client) LoggedIn() bool {
	jar := c.http.Jar()
	if jar == nil {
		return false
	}
	for _, ck := range jar.Cookies(c.base) {
		if ck.Name == SessionCookie && ck.Value != "" {
			return true
		}
	}
	return false
}

func (c *Client) persistSession() {
	if c.sessionFile == "" {
		return
	}
	if err := c.http.SaveCookies(c.sessionFile, c.base); err != nil {
		c.log.Warn("failed to persist session", logger.String("path", c.sessionFile), logger.Error(err))
	}
}

func (c *Client) clearSession() {
	if err := c.http.ClearCookies(c.sessionFile, c.base); err != nil {
		c.log.Warn("failed to clear session", logger.String("path", c.sessionFile), logger.Error(err))
	}
}
