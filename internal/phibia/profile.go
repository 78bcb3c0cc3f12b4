package phibia

import (
	"context"
	"net/http"
	"strings"
)

// UserInfo is the logged in user's profile.
type UserInfo struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	AvatarID        *int   `json:"avatar_id"`
	BackgroundColor string `json:"background_color,omitempty"`
}

// Avatar returns the selected avatar, defaulting to the first one.
func (u *UserInfo) Avatar() Avatar {
	if u.AvatarID != nil {
		if a, ok := AvatarByID(*u.AvatarID); ok {
			return a
		}
	}
	return avatars[0]
}

// Background returns the background colour, defaulting to black.
func (u *UserInfo) Background() string {
	if u.BackgroundColor == "" {
		return DefaultBackgroundColor
	}
	return u.BackgroundColor
}

func (u *UserInfo) clone() *UserInfo {
	if u == nil {
		return nil
	}
	cp := *u
	if u.AvatarID != nil {
		id := *u.AvatarID
		cp.AvatarID = &id
	}
	return &cp
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (*UserInfo, error) {
	var user UserInfo
	if err := c.doJSON(ctx, "get_profile", http.MethodGet, c.endpoint("api", "user", "profile"), nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateAvatar sets the profile avatar.
func (c *Client) UpdateAvatar(ctx context.Context, avatarID int) error {
	if err := ValidateAvatarID(avatarID); err != nil {
		return err
	}
	body := map[string]int{"avatar_id": avatarID}
	return c.doJSON(ctx, "update_avatar", http.MethodPut, c.endpoint("update_avatar"), body, nil, true)
}

// UpdateBackground sets the profile background colour.
func (c *Client) UpdateBackground(ctx context.Context, color string) error {
	color = strings.TrimSpace(color)
	if err := ValidateBackgroundColor(color); err != nil {
		return err
	}
	body := map[string]string{"background_color": color}
	return c.doJSON(ctx, "update_background", http.MethodPut, c.endpoint("update_background"), body, nil, true)
}
