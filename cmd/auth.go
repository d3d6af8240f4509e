package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/shelfscan/shelfscan/internal/models"
	"github.com/shelfscan/shelfscan/internal/prompt"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the catalog",
		Long: `Sign in with your catalog account. The session is kept encrypted in the
configured storage until you log out.`,
		Example: `  # Prompt for email and password
  shelfscan login

  # Non-interactive
  printf 'secret\n' | shelfscan login --email ann@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.Session(ctx)
			if err != nil {
				return err
			}

			src := cmd.InOrStdin()
			in := bufio.NewReader(src)
			out := cmd.ErrOrStderr()
			if email == "" {
				if email, err = prompt.Text(in, out, "Email"); err != nil {
					return fmt.Errorf("failed to read email: %w", err)
				}
			}
			var password string
			if src == os.Stdin {
				password, err = prompt.Password(in, out)
			} else {
				password, err = prompt.Text(in, out, "Password")
			}
			if err != nil {
				return err
			}

			resp, err := a.Client().Login(ctx, models.Credentials{Email: email, Password: password})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			user := resp.User()
			if err := a.warnPersist(s.SignIn(ctx, user, resp.Token)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", user.Name, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.Session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.warnPersist(s.SignOut(cmd.Context())); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.SignedIn(cmd.Context())
			if err != nil {
				return err
			}
			u, _ := s.User()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", u.Name, u.Email)
			fmt.Fprintf(out, "id:   %s\nrole: %s\n", u.ID, u.Role)
			if u.Seller != "" {
				fmt.Fprintf(out, "seller: %s (%s)\n", u.Seller, u.SellerID)
			}
			return nil
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the local profile of the signed-in user",
	}
	cmd.AddCommand(newProfileSetCmd(a))
	return cmd
}

func newProfileSetCmd(a *app) *cobra.Command {
	var name, email, role, seller, sellerID string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields kept with the session",
		Example: `  shelfscan profile set --name "Ann Lee" --seller Acme --seller-id s-42`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.UserPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("email") {
				patch.Email = &email
			}
			if flags.Changed("role") {
				patch.Role = &role
			}
			if flags.Changed("seller") {
				patch.Seller = &seller
			}
			if flags.Changed("seller-id") {
				patch.SellerID = &sellerID
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update: pass at least one of --name, --email, --role, --seller, --seller-id")
			}

			s, err := a.SignedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.warnPersist(s.UpdateUser(cmd.Context(), patch)); err != nil {
				return err
			}
			u, _ := s.User()
			fmt.Fprintf(cmd.OutOrStdout(), "Profile updated: %s <%s> %s\n", u.Name, u.Email, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().StringVar(&role, "role", "", "Role")
	cmd.Flags().StringVar(&seller, "seller", "", "Seller name")
	cmd.Flags().StringVar(&sellerID, "seller-id", "", "Seller ID")

	return cmd
}
