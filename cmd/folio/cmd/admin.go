package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/guard"
)

var heartbeatWatch bool

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Log in to and out of this admin device",
}

var adminLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start an admin session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		st, err := c.Guard.Status()
		if err != nil {
			return err
		}
		switch st.State {
		case guard.LoggedIn:
			fmt.Fprintf(cmd.OutOrStdout(), "Already logged in as %s\n", st.Session.DisplayName)
			return nil
		case guard.Blocked:
			return blockedError(st)
		}

		secret, err := newPrompter(cmd).secret("Admin secret: ")
		if err != nil {
			return err
		}
		ok, err := c.Guard.AttemptLogin(secret)
		if err != nil {
			return err
		}
		if !ok {
			st, err := c.Guard.Status()
			if err != nil {
				return err
			}
			if st.State == guard.Blocked {
				return blockedError(st)
			}
			return fmt.Errorf("invalid secret, %d attempt(s) remaining", st.RemainingAttempts)
		}

		st, err = c.Guard.Status()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s until %s\n",
			st.Session.DisplayName, st.ExpiresAt.Local().Format(time.DateTime))
		return nil
	},
}

var adminLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the admin session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Guard.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

type statusOutput struct {
	State             string     `json:"state"`
	FailedAttempts    int        `json:"failed_attempts"`
	RemainingAttempts int        `json:"remaining_attempts"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
	DisplayName       string     `json:"display_name,omitempty"`
	LoginTime         *time.Time `json:"login_time,omitempty"`
	LastActivity      *time.Time `json:"last_activity,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

var adminStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session and lockout state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		st, err := c.Guard.Status()
		if err != nil {
			return err
		}
		out := statusOutput{
			State:             st.State.String(),
			FailedAttempts:    st.FailedAttempts,
			RemainingAttempts: st.RemainingAttempts,
		}
		switch st.State {
		case guard.Blocked:
			out.BlockedUntil = &st.BlockedUntil
		case guard.LoggedIn:
			out.DisplayName = st.Session.DisplayName
			out.LoginTime = &st.Session.LoginTime
			out.LastActivity = &st.Session.LastActivity
			out.ExpiresAt = &st.ExpiresAt
		}
		w := cmd.OutOrStdout()
		if ok, err := outputJSON(w, out); ok {
			return err
		}

		fmt.Fprintf(w, "State:              %s\n", out.State)
		fmt.Fprintf(w, "Failed attempts:    %d\n", out.FailedAttempts)
		fmt.Fprintf(w, "Remaining attempts: %d\n", out.RemainingAttempts)
		if out.BlockedUntil != nil {
			fmt.Fprintf(w, "Blocked until:      %s\n", out.BlockedUntil.Local().Format(time.DateTime))
		}
		if out.LoginTime != nil {
			fmt.Fprintf(w, "Logged in as:       %s\n", out.DisplayName)
			fmt.Fprintf(w, "Login time:         %s\n", out.LoginTime.Local().Format(time.DateTime))
			fmt.Fprintf(w, "Last activity:      %s\n", out.LastActivity.Local().Format(time.DateTime))
			fmt.Fprintf(w, "Expires at:         %s\n", out.ExpiresAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

var adminHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Refresh the session, or end it if it has expired",
	Long: `Runs one session heartbeat: an expired session is ended, a live one has
its activity refreshed. With --watch it keeps running a heartbeat every
guard.heartbeat_interval until interrupted or the session ends.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openClient()
		if err != nil {
			return err
		}
		defer c.Close()

		state, err := c.Guard.Heartbeat()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), state)
		if !heartbeatWatch || state != guard.LoggedIn {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		c.Guard.Run(ctx)
		state, err = c.Guard.State()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminLoginCmd, adminLogoutCmd, adminStatusCmd, adminHeartbeatCmd)
	adminHeartbeatCmd.Flags().BoolVar(&heartbeatWatch, "watch", false, "Keep the session alive until interrupted")
}

func openClient() (*client.Client, error) {
	return client.Open(cfg, client.WithLogger(logger))
}

func blockedError(st guard.Status) error {
	wait := time.Until(st.BlockedUntil).Round(time.Second)
	return fmt.Errorf("%w: try again in %s", guard.ErrBlocked, wait)
}

// authorized opens the client and checks for a live session. The caller
// must Close the returned client.
func authorized() (*client.Client, error) {
	c, err := openClient()
	if err != nil {
		return nil, err
	}
	if _, err := c.Authorize(); err != nil {
		c.Close()
		if errors.Is(err, guard.ErrNotAuthenticated) {
			return nil, fmt.Errorf("%w: run \"folio admin login\" first", err)
		}
		return nil, err
	}
	return c, nil
}
