package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// storedCookie is the on-disk form of a session cookie
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	SavedAt time.Time `json:"saved_at"`
}

// SaveCookies writes the jar's cookies for baseURL to path with owner-only
// permissions. The write goes through a temp file and rename.
func (c *Client) SaveCookies(path string, baseURL *url.URL) error {
	if c.jar == nil {
		return nil
	}

	now := time.Now()
	cookies := c.jar.Cookies(baseURL)
	stored := make([]storedCookie, 0, len(cookies))
	for _, ck := range cookies {
		stored = append(stored, storedCookie{Name: ck.Name, Value: ck.Value, SavedAt: now})
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create cookie directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cookie file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set cookie file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cookie file: %w", err)
	}
	return os.Rename(tmpName, path)
}

// LoadCookies restores cookies saved by SaveCookies into the jar for baseURL.
// A missing file is not an error.
func (c *Client) LoadCookies(path string, baseURL *url.URL) error {
	if c.jar == nil {
		return nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path from config
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to decode cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	c.jar.SetCookies(baseURL, cookies)
	return nil
}

// ClearCookies removes the saved cookie file and expires cookies for baseURL.
func (c *Client) ClearCookies(path string, baseURL *url.URL) error {
	if c.jar != nil {
		expired := make([]*http.Cookie, 0)
		for _, ck := range c.jar.Cookies(baseURL) {
			expired = append(expired, &http.Cookie{Name: ck.Name, Path: "/", MaxAge: -1})
		}
		c.jar.SetCookies(baseURL, expired)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}
