package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ehr/hospital/internal/config"
	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/platform/apiclient"
	"github.com/ehr/hospital/internal/platform/session"
	"github.com/ehr/hospital/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootFlags override the matching environment settings when set.
type rootFlags struct {
	api       string
	sessionDB string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:          "hospital-console",
		Short:        "Hospital administration console",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.api, "api", "", "API base URL (overrides API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.sessionDB, "session-db", "", "Session database path (overrides SESSION_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(loginCmd(flags))
	rootCmd.AddCommand(logoutCmd(flags))
	rootCmd.AddCommand(whoamiCmd(flags))
	rootCmd.AddCommand(passwordCmd(flags))
	rootCmd.AddCommand(syncCmd(flags))
	rootCmd.AddCommand(listCmd(flags))
	rootCmd.AddCommand(patientCmd(flags))
	rootCmd.AddCommand(bedCmd(flags))
	rootCmd.AddCommand(appointmentCmd(flags))
	rootCmd.AddCommand(labtestCmd(flags))
	rootCmd.AddCommand(inventoryCmd(flags))
	rootCmd.AddCommand(visitorCmd(flags))
	rootCmd.AddCommand(billCmd(flags))
	rootCmd.AddCommand(medCmd(flags))
	rootCmd.AddCommand(reportCmd(flags))
	rootCmd.AddCommand(sandboxCmd(flags))
	return rootCmd
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

func loadConfig(f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if f.api != "" {
		cfg.APIBaseURL = strings.TrimRight(f.api, "/")
	}
	if f.sessionDB != "" {
		cfg.SessionDBPath = f.sessionDB
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes JSON to stderr, or console output in development, so
// stdout stays free for command results.
func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// console is the per-invocation client stack.
type console struct {
	cfg    *config.Config
	logger zerolog.Logger
	kv     *session.SQLite
	client *apiclient.Client
	store  *store.Store
	out    io.Writer
}

func openConsole(cmd *cobra.Command, f *rootFlags) (*console, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	kv, err := session.OpenSQLite(cmd.Context(), cfg.SessionDBPath)
	if err != nil {
		return nil, err
	}
	client := apiclient.New(apiclient.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.HTTPTimeout,
		RetryCount: cfg.HTTPRetryCount,
	}, kv, logger)

	return &console{
		cfg:    cfg,
		logger: logger,
		kv:     kv,
		client: client,
		store:  store.New(client, logger),
		out:    cmd.OutOrStdout(),
	}, nil
}

func (c *console) Close() {
	if err := c.kv.Close(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to close session database")
	}
}

var errNotLoggedIn = errors.New("not logged in; run `hospital-console login` first")

// resume adopts the stored session and warms the role's collections. A
// session the server no longer accepts surfaces as the recorded error.
func (c *console) resume(ctx context.Context) (store.State, error) {
	if !c.store.Restore(ctx) {
		return store.State{}, errNotLoggedIn
	}
	st := c.store.Snapshot()
	if !st.Session.IsAuthenticated {
		if st.Err != nil {
			return st, st.Err
		}
		return st, errNotLoggedIn
	}
	return st, nil
}

// ensure loads name unless the sign-in fan-out already did.
func (c *console) ensure(ctx context.Context, st store.State, name string) (store.State, error) {
	for _, warmed := range store.FanOutFields(st.Session.CurrentUser.Role) {
		if warmed == name {
			return st, nil
		}
	}
	if err := c.store.Refresh(ctx, name); err != nil {
		return c.store.Snapshot(), err
	}
	return c.store.Snapshot(), nil
}

// run opens the console, resumes the session and hands both to fn.
func run(f *rootFlags, fn func(ctx context.Context, c *console, st store.State, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := openConsole(cmd, f)
		if err != nil {
			return err
		}
		defer c.Close()
		st, err := c.resume(cmd.Context())
		if err != nil {
			return err
		}
		return fn(cmd.Context(), c, st, args)
	}
}

// ---------------------------------------------------------------------------
// Session commands
// ---------------------------------------------------------------------------

func loginCmd(f *rootFlags) *cobra.Command {
	var username string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openConsole(cmd, f)
			if err != nil {
				return err
			}
			defer c.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				fmt.Fprint(c.out, "Username: ")
				if username, err = readLine(in); err != nil {
					return err
				}
			}
			password, err := readPassword(c.out, in, passwordStdin)
			if err != nil {
				return err
			}

			if err := c.store.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			st := c.store.Snapshot()
			u := st.Session.CurrentUser
			fmt.Fprintf(c.out, "Signed in as %s (%s)\n", u.DisplayName(), u.Role)
			printCounts(c.out, st, store.FanOutFields(u.Role))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword prompts without echo on a terminal and reads a plain line
// otherwise.
func readPassword(out io.Writer, in *bufio.Reader, fromStdin bool) (string, error) {
	fd := int(os.Stdin.Fd())
	if fromStdin || !term.IsTerminal(fd) {
		return readLine(in)
	}
	fmt.Fprint(out, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func logoutCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openConsole(cmd, f)
			if err != nil {
				return err
			}
			defer c.Close()
			if _, ok := c.client.Resume(cmd.Context()); !ok {
				fmt.Fprintln(c.out, "Not signed in.")
				return nil
			}
			c.store.Logout(cmd.Context())
			fmt.Fprintln(c.out, "Signed out.")
			return nil
		},
	}
}

func whoamiCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user as the server sees it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openConsole(cmd, f)
			if err != nil {
				return err
			}
			defer c.Close()
			if _, ok := c.client.Resume(cmd.Context()); !ok {
				return errNotLoggedIn
			}
			u, err := c.store.RefreshProfile(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Username:\t%s\n", u.Username)
			fmt.Fprintf(w, "Name:\t%s\n", u.DisplayName())
			fmt.Fprintf(w, "Role:\t%s\n", u.Role)
			if u.Email != "" {
				fmt.Fprintf(w, "Email:\t%s\n", u.Email)
			}
			if u.Department != "" {
				fmt.Fprintf(w, "Department:\t%s\n", u.Department)
			}
			return w.Flush()
		},
	}
}

func syncCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Restore the session, fetch the role's collections and print their sizes",
		Args:  cobra.NoArgs,
		RunE: run(f, func(_ context.Context, c *console, st store.State, _ []string) error {
			printCounts(c.out, st, store.FanOutFields(st.Session.CurrentUser.Role))
			if st.Err != nil {
				fmt.Fprintf(c.out, "warning: %s\n", st.ErrorMessage())
			}
			return nil
		}),
	}
}

func passwordCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Forgotten-password flow",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "forgot <email>",
		Short: "Ask the server to send a reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openConsole(cmd, f)
			if err != nil {
				return err
			}
			defer c.Close()
			msg, err := c.store.ForgotPassword(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, msg)
			return nil
		},
	})

	var uid, token string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with the emailed link parts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openConsole(cmd, f)
			if err != nil {
				return err
			}
			defer c.Close()
			in := bufio.NewReader(cmd.InOrStdin())
			password, err := readPassword(c.out, in, false)
			if err != nil {
				return err
			}
			msg, err := c.store.ResetPassword(cmd.Context(), identity.PasswordResetConfirm{
				Token:           token,
				UIDB64:          uid,
				NewPassword:     password,
				ConfirmPassword: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, msg)
			return nil
		},
	}
	reset.Flags().StringVar(&uid, "uid", "", "uidb64 from the reset link")
	reset.Flags().StringVar(&token, "token", "", "Token from the reset link")
	cmd.AddCommand(reset)
	return cmd
}

// printCounts writes one line per collection, in names order.
func printCounts(out io.Writer, st store.State, names []string) {
	counts := st.Counts()
	if len(names) == 0 {
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tCOUNT")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
	}
	w.Flush()
}
