package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/ui"
)

var shareAccess string

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Share notes with other accounts",
}

var shareAddCmd = &cobra.Command{
	Use:   "add <note-id> <email>",
	Short: "Grant someone access to a note",
	Long: `Grant view or edit access to a note. The grant starts out pending
until the recipient accepts it in their client.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustLocalID(args[0])
		email := args[1]

		access := model.AccessLevel(shareAccess)
		if !access.Valid() {
			fmt.Fprintf(os.Stderr, "Error: --access must be view or edit\n")
			os.Exit(1)
		}

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		ctx := context.Background()

		n, err := db.GetNote(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, existing := range n.Shares {
			if strings.EqualFold(existing.RecipientEmail, email) {
				fmt.Fprintf(os.Stderr, "Error: note already shared with %s\n", email)
				os.Exit(1)
			}
		}

		n.Shares = append(n.Shares, model.NewShare(email, access))
		if err := mustWriter(db).UpdateNote(ctx, n); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating note: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Shared note %s with %s (%s)\n",
			ui.OK("✓"), ui.Accent(fmt.Sprintf("#%d", id)), ui.Accent(email), access)
	},
}

var shareListCmd = &cobra.Command{
	Use:   "list <note-id>",
	Short: "List who a note is shared with",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustLocalID(args[0])

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		n, err := db.GetNote(context.Background(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(n.Shares) == 0 {
			fmt.Println("Not shared")
			return
		}
		for _, share := range n.Shares {
			fmt.Printf("%s %s %s %s\n",
				share.RecipientEmail,
				ui.Faint(string(share.Access)),
				ui.Faint(string(share.Status)),
				ui.Faint(share.GrantedAt.Format("2006-01-02")))
		}
	},
}

var shareRmCmd = &cobra.Command{
	Use:   "rm <note-id> <email>",
	Short: "Revoke someone's access to a note",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustLocalID(args[0])
		email := args[1]

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		ctx := context.Background()

		n, err := db.GetNote(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		kept := n.Shares[:0]
		removed := false
		for _, share := range n.Shares {
			if strings.EqualFold(share.RecipientEmail, email) {
				removed = true
				continue
			}
			kept = append(kept, share)
		}
		if !removed {
			fmt.Fprintf(os.Stderr, "Error: note is not shared with %s\n", email)
			os.Exit(1)
		}

		n.Shares = kept
		if err := mustWriter(db).UpdateNote(ctx, n); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating note: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Revoked %s's access to note %s\n", ui.OK("✓"), email, ui.Accent(fmt.Sprintf("#%d", id)))
	},
}

func init() {
	shareAddCmd.Flags().StringVar(&shareAccess, "access", "view", "access level: view or edit")

	shareCmd.AddCommand(shareAddCmd)
	shareCmd.AddCommand(shareListCmd)
	shareCmd.AddCommand(shareRmCmd)
	rootCmd.AddCommand(shareCmd)
}
