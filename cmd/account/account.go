// Package account implements the login, logout, register and whoami commands.
package account

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/phibia-app/phibia-go/internal/analysis"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/phibia"
)

// Commands returns the account commands, which attach to the root.
func Commands(settings *conf.Settings) []*cobra.Command {
	return []*cobra.Command{
		loginCommand(settings),
		logoutCommand(settings),
		registerCommand(settings),
		whoamiCommand(settings),
	}
}

func loginCommand(settings *conf.Settings) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to your phibIA account",
		Long:  "Log in and keep the session for later commands. The password is read from the terminal, or from the first line of stdin when it is not a terminal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			user, err := phibia.NewSessionContext(client).Login(cmd.Context(), phibia.Credentials{Email: email, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sesión iniciada como %s\n", displayName(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sesión cerrada.")
			return nil
		},
	}
}

func registerCommand(settings *conf.Settings) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a phibIA account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Register(cmd.Context(), phibia.Registration{Name: name, Email: email, Password: password}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cuenta creada. Ya podés iniciar sesión con \"phibia login\".")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func whoamiCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := analysis.NewAPIClient(settings)
			if err != nil {
				return err
			}
			defer client.Close()

			user, ok, err := client.VerifyToken(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No hay sesión iniciada.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), displayName(user))
			return nil
		},
	}
}

func displayName(user *phibia.UserInfo) string {
	if user == nil {
		return ""
	}
	if user.Name == "" {
		return user.Email
	}
	return fmt.Sprintf("%s <%s>", user.Name, user.Email)
}

// readPassword prompts on a terminal, or reads one line from stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Contraseña: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return checkPassword(string(raw))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("password is required")
	}
	return p, nil
}
