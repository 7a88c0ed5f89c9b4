package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/ui"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a Firebase ID token",
	Long: `Verify a Firebase ID token against the configured backend and save
the resulting session. Sync commands and the daemon act on behalf of
the signed-in account.`,
	Run: func(cmd *cobra.Command, args []string) {
		if loginToken == "" {
			fmt.Fprintf(os.Stderr, "Error: --token is required\n")
			os.Exit(1)
		}

		cfg := mustConfig()
		ctx := context.Background()

		client := mustRemote(ctx, cfg)
		defer client.Close()

		s, err := client.VerifySession(ctx, loginToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error verifying token: %v\n", err)
			os.Exit(1)
		}
		if err := saveSession(s); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving session: %v\n", err)
			os.Exit(1)
		}

		who := s.Email
		if who == "" {
			who = s.UID
		}
		fmt.Printf("%s Signed in as %s\n", ui.OK("✓"), ui.Accent(who))
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	Run: func(cmd *cobra.Command, args []string) {
		if err := clearSession(); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing session: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Signed out\n", ui.OK("✓"))
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Run: func(cmd *cobra.Command, args []string) {
		sessions := loadSessions()
		s := sessions.Current()
		if s == nil {
			fmt.Println("Not signed in")
			return
		}
		fmt.Printf("%s\n", ui.Title(s.Email))
		fmt.Printf("  uid: %s\n", ui.Faint(s.UID))
		if s.DisplayName != "" {
			fmt.Printf("  name: %s\n", s.DisplayName)
		}
		fmt.Printf("  since: %s\n", ui.Faint(s.StartedAt.Format("2006-01-02 15:04:05")))
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Firebase ID token to verify")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
