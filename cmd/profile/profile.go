package profile

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/phibia"
)

// Command creates the profile command group. Without a subcommand it shows the profile.
func Command(settings *conf.Settings) *cobra.Command {
	show := func(cmd *cobra.Command, args []string) error {
		return withSession(settings, func(s *phibia.SessionContext) error {
			user, err := s.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), user)
			return nil
		})
	}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your profile",
		Args:  cobra.NoArgs,
		RunE:  show,
	}

	cmd.AddCommand(
		&cobra.Command{Use: "show", Short: "Show your profile", Args: cobra.NoArgs, RunE: show},
		avatarCommand(settings),
		backgroundCommand(settings),
	)
	return cmd
}

func avatarCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar [id]",
		Short: "Choose your avatar; without an id, list the choices",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, a := range phibia.Avatars() {
					fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", a.ID, a.Name)
				}
				return nil
			}

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid avatar id %q", args[0])
			}
			if err := phibia.ValidateAvatarID(id); err != nil {
				return err
			}
			return withSession(settings, func(s *phibia.SessionContext) error {
				if err := s.SetAvatar(cmd.Context(), id); err != nil {
					return err
				}
				avatar, _ := phibia.AvatarByID(id)
				fmt.Fprintf(cmd.OutOrStdout(), "Avatar actualizado: %s\n", avatar.Name)
				return nil
			})
		},
	}
}

func backgroundCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "background <#rrggbb>",
		Short: "Set your profile background colour",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			color := args[0]
			if err := phibia.ValidateBackgroundColor(color); err != nil {
				return err
			}
			return withSession(settings, func(s *phibia.SessionContext) error {
				if err := s.SetBackground(cmd.Context(), color); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Fondo actualizado: %s\n", color)
				return nil
			})
		},
	}
}

func withSession(settings *conf.Settings, fn func(*phibia.SessionContext) error) error {
	client, err := analysis.NewAPIClient(settings)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(phibia.NewSessionContext(client))
}

func printUser(w io.Writer, user *phibia.UserInfo) {
	fmt.Fprintf(w, "Nombre:  %s\n", user.Name)
	fmt.Fprintf(w, "Email:   %s\n", user.Email)
	fmt.Fprintf(w, "Avatar:  %s\n", user.Avatar().Name)
	fmt.Fprintf(w, "Fondo:   %s\n", user.Background())
}
