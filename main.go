package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"library-service/api"
	"library-service/library"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	root := &cobra.Command{
		Use:           "librarian",
		Short:         "Library management backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cfg.bind(root)

	root.AddCommand(newServeCmd(cfg), newMigrateCmd(cfg), newUserCmd(cfg))
	return root
}

func newServeCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := cfg.logger(os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := cfg.open(ctx, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			auth, err := cfg.authenticator(db)
			if err != nil {
				return err
			}
			srv := api.New(library.NewManager(db), auth, log)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Listen(cfg.addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newMigrateCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := cfg.logger(os.Stderr)
			if err != nil {
				return err
			}
			db, err := cfg.open(cmd.Context(), log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			log.Info("schema up to date", "driver", db.Dialect())
			return nil
		},
	}
}

func newUserCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}

	var admin, fromStdin bool
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an API user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), cfg, func(db *library.Database) error {
				password, err := readNewPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), fromStdin)
				if err != nil {
					return err
				}

				role := library.RoleUser
				if admin {
					role = library.RoleAdmin
				}
				id, err := db.AddUser(cmd.Context(), args[0], password, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %q added with ID %d (role %s)\n", args[0], id, role)
				return nil
			})
		},
	}
	add.Flags().BoolVar(&admin, "admin", false, "grant the administrator role")
	add.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")

	var passwdStdin bool
	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Reset an API user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), cfg, func(db *library.Database) error {
				password, err := readNewPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), passwdStdin)
				if err != nil {
					return err
				}
				if err := db.SetUserPassword(cmd.Context(), args[0], password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", args[0])
				return nil
			})
		},
	}
	passwd.Flags().BoolVar(&passwdStdin, "password-stdin", false, "read the password from stdin")

	cmd.AddCommand(add, passwd)
	return cmd
}

func withDB(ctx context.Context, cfg *config, fn func(*library.Database) error) error {
	log, err := cfg.logger(os.Stderr)
	if err != nil {
		return err
	}
	db, err := cfg.open(ctx, log)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

// readPassword securely reads a password with masking
func readPassword(prompt string, out io.Writer) (string, error) {
	fmt.Fprint(out, prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out) // Add newline after password input
	return string(bytePassword), nil
}

// readNewPassword reads the first line of in when fromStdin is set; otherwise
// it prompts twice on the terminal.
func readNewPassword(in io.Reader, out io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		sc := bufio.NewScanner(in)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return "", errors.New("no password on stdin")
		}
		return strings.TrimSuffix(sc.Text(), "\r"), nil
	}

	password, err := readPassword("Password: ", out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := readPassword("Confirm password: ", out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
