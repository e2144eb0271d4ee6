package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/hitoshi/unsaid/internal/app"
	"github.com/hitoshi/unsaid/internal/auth"
	"github.com/hitoshi/unsaid/internal/chat"
	"github.com/hitoshi/unsaid/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openWorkspace は設定を読み込みWorkspaceを開く。呼び出し側はws.Close()をdeferすること。
// CLIではログを標準エラーに出す。
func openWorkspace() (*app.Workspace, error) {
	cfg, err := app.Init(os.Stderr)
	if err != nil {
		return nil, err
	}
	ws, err := app.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening data store: %w", err)
	}
	return ws, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:           "unsaid",
	Short:         "Unsaid companion service",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.Init(os.Stdout)
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return app.RunServe(ctx, cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.Init(os.Stdout)
		if err != nil {
			return err
		}
		return app.RunMigrate(cfg)
	},
}

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check the local server's /health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 設定を読まずに済むようポートだけ環境変数から取る
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return app.RunHealthcheck(port)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the user profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")

		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		user, err := ws.Auth.Login(cmd.Context(), token)
		if err != nil {
			return describeError(err)
		}
		fmt.Printf("Signed in as %s <%s> (%s)\n", user.Name, user.Email, user.Tier)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove conversations, usage and memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		if err := ws.Auth.Logout(cmd.Context()); err != nil {
			return describeError(err)
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the sign-in state and stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		state, err := ws.Auth.State(cmd.Context())
		if err != nil {
			return describeError(err)
		}
		fmt.Printf("State: %s\n", state)
		if state != auth.StateAuthenticated {
			return nil
		}
		user, err := ws.Auth.CurrentUser(cmd.Context())
		if err != nil {
			return describeError(err)
		}
		fmt.Printf("User:  %s <%s>\nTier:  %s\n", user.Name, user.Email, user.Tier)
		return nil
	},
}

var tierCmd = &cobra.Command{
	Use:   "tier <guest|free|premium>",
	Short: "Change the subscription tier of the signed-in user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		user, err := ws.Auth.UpdateTier(cmd.Context(), model.Tier(args[0]))
		if err != nil {
			return describeError(err)
		}
		fmt.Printf("Tier: %s\n", user.Tier)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		person, _ := cmd.Flags().GetString("person")
		if !model.Mode(mode).Valid() {
			return describeError(model.NewInvalidModeError(mode))
		}

		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		ctx, stop := signalContext()
		defer stop()

		in, err := newLineInput(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		defer in.Close()

		return runChat(ctx, ws.Chat, in, os.Stdout, chatOptions{
			Mode:       model.Mode(mode),
			PersonName: person,
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		sessions, err := ws.Sessions.List(cmd.Context())
		if err != nil {
			return describeError(err)
		}
		current, err := ws.Sessions.Current(cmd.Context())
		if err != nil {
			return describeError(err)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tMODE\tTITLE\tMESSAGES\tUPDATED")
		for _, s := range sessions {
			marker := ""
			if current != nil && current.ID == s.ID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				marker, s.ID, s.Mode, s.Title, len(s.Messages), s.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's usage per mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		summary, err := ws.Chat.Usage(cmd.Context())
		if err != nil {
			return describeError(err)
		}
		printUsage(os.Stdout, summary)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the user profile and conversations as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		recipient, _ := cmd.Flags().GetString("recipient")

		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		w := os.Stdout
		if out != "" {
			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if recipient != "" {
			err = ws.Data.WriteEncrypted(cmd.Context(), w, recipient)
		} else {
			err = ws.Data.WriteJSON(cmd.Context(), w)
		}
		if err != nil {
			return describeError(err)
		}
		if out != "" {
			fmt.Fprintf(os.Stderr, "Exported to %s\n", out)
		}
		return nil
	},
}

var clearDataCmd = &cobra.Command{
	Use:   "clear-data",
	Short: "Delete conversations and memories and reset usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace()
		if err != nil {
			return err
		}
		defer ws.Close()

		if err := ws.Data.Clear(cmd.Context()); err != nil {
			return describeError(err)
		}
		fmt.Println("All conversations and memories have been deleted")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("token", "mock-google-token", "Identity token issued by Google")

	chatCmd.Flags().StringP("mode", "m", string(model.ModeTherapy), "Conversation mode (therapy, unsaid, closure)")
	chatCmd.Flags().StringP("person", "p", "", "Name of the person to address in closure mode")

	exportCmd.Flags().StringP("out", "o", "", "Write the export to this file instead of stdout")
	exportCmd.Flags().StringP("recipient", "r", "", "Encrypt the export to this age recipient")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(healthcheckCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(tierCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(clearDataCmd)
}

// compile-time check
var _ chatClient = (*chat.Service)(nil)
