package main

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"artmarket/internal/domain"
	"artmarket/internal/routing"
	"artmarket/internal/session"

	"github.com/spf13/cobra"
)

func signInCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and open the dashboard for your role",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := current.ready(ctx); err != nil {
				return err
			}
			if err := current.askCredentials(&email, &password); err != nil {
				return err
			}
			profile, err := current.store.SignIn(ctx, email, password)
			if err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			fmt.Fprintf(current.out, "Sesion iniciada como %s (%s)\n", displayName(profile), profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	return cmd
}

func signUpCmd() *cobra.Command {
	var (
		input session.SignUpInput
		role  string
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with an initial profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := current.ready(ctx); err != nil {
				return err
			}
			if err := current.askCredentials(&input.Email, &input.Password); err != nil {
				return err
			}
			input.Role = domain.ParseRole(role)
			if !input.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			profile, err := current.store.SignUp(ctx, input)
			if err != nil {
				return fmt.Errorf("sign up: %w", err)
			}
			fmt.Fprintf(current.out, "Cuenta creada para %s (%s)\n", displayName(profile), profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&input.Password, "password", "p", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&role, "role", "buyer", "profile role: artist, gallery or buyer")
	cmd.Flags().StringVar(&input.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&input.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&input.Telephone, "telephone", "", "contact telephone")
	cmd.Flags().StringVar(&input.Country, "country", "", "country")
	return cmd
}

func signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := current.ready(ctx); err != nil {
				return err
			}
			if err := current.store.SignOut(ctx); err != nil {
				fmt.Fprintf(current.out, "Sesion local borrada; el servidor respondio: %v\n", err)
				return nil
			}
			fmt.Fprintln(current.out, "Sesion cerrada")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity, profile and home destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := current.store.WaitReady(cmd.Context())
			if err != nil {
				return err
			}
			if snap.Identity == nil {
				fmt.Fprintln(current.out, "No hay sesion activa")
				return nil
			}
			fmt.Fprintf(current.out, "Identidad: %s <%s>\n", snap.Identity.ID, snap.Identity.Email)
			if snap.Profile == nil {
				if snap.Err != nil {
					return fmt.Errorf("profile unavailable: %w", snap.Err)
				}
				return errors.New("profile unavailable")
			}
			fmt.Fprintf(current.out, "Perfil: %s (%s)\n", displayName(*snap.Profile), snap.Profile.Role)
			fmt.Fprintf(current.out, "Inicio: %s\n", routing.Destination(snap.Profile.Role))
			return nil
		},
	}
}

func openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Request a page and show whether the guard renders or redirects it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := current.ready(ctx); err != nil {
				return err
			}
			res, err := current.client.Page(ctx, args[0])
			if err != nil {
				return err
			}
			switch {
			case res.Location != "":
				fmt.Fprintf(current.out, "%d redirect -> %s\n", res.Status, res.Location)
			case res.Page != "":
				fmt.Fprintf(current.out, "%d render %s\n", res.Status, res.Page)
			default:
				fmt.Fprintf(current.out, "%d\n", res.Status)
			}
			return nil
		},
	}
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <bucket> <file>",
		Short: "Upload an image to a storage bucket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := current.ready(ctx); err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			obj, err := current.client.Upload(ctx, args[0], args[1], mime.TypeByExtension(filepath.Ext(args[1])), f)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			fmt.Fprintf(current.out, "%s\n", obj.URL)
			return nil
		},
	}
}

func (a *app) askCredentials(email, password *string) error {
	var err error
	if *email == "" {
		if *email, err = a.prompt("Email"); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.prompt("Password"); err != nil {
			return err
		}
	}
	return nil
}

func displayName(p domain.Profile) string {
	if name := p.FullName(); name != "" {
		return name
	}
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}
