package phibia

import (
	"fmt"

	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/errors"
)

// DefaultBackgroundColor is used when the profile has none.
const DefaultBackgroundColor = "#000000"

// Avatar is one of the selectable profile pictures.
type Avatar struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var avatars = []Avatar{
	{ID: 0, Name: "Sapo común"},
	{ID: 1, Name: "Escuercito"},
	{ID: 2, Name: "Ranita trepadora"},
	{ID: 3, Name: "Escuerzo"},
	{ID: 4, Name: "Ranita rayada"},
}

// Avatars returns the selectable avatars.
func Avatars() []Avatar {
	out := make([]Avatar, len(avatars))
	copy(out, avatars)
	return out
}

// AvatarByID looks up an avatar.
func AvatarByID(id int) (Avatar, bool) {
	if id < 0 || id >= len(avatars) {
		return Avatar{}, false
	}
	return avatars[id], true
}

// ValidateAvatarID rejects ids outside the avatar list.
func ValidateAvatarID(id int) error {
	if _, ok := AvatarByID(id); !ok {
		return errors.New(fmt.Errorf("avatar id %d out of range 0-%d", id, len(avatars)-1)).
			Component("phibia-api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

// ValidateBackgroundColor accepts #rrggbb colours.
func ValidateBackgroundColor(color string) error {
	if !conf.HexColorPattern.MatchString(color) {
		return errors.New(fmt.Errorf("invalid background color %q, expected #rrggbb", color)).
			Component("phibia-api").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
