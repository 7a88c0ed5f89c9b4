package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/store"
	"github.com/quillpad/quill/internal/ui"
)

var (
	noteAddTitle  string
	noteAddBody   string
	noteAddFolder string
	noteListAll   bool
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a note",
	Long: `Create a note in the local cache. The upload to the backend is
queued and handled by the sync daemon (or 'quill sync now').

The body is read from --body, or from stdin when --body is "-".`,
	Run: func(cmd *cobra.Command, args []string) {
		if noteAddTitle == "" {
			fmt.Fprintf(os.Stderr, "Error: --title is required\n")
			os.Exit(1)
		}

		body := noteAddBody
		if body == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
				os.Exit(1)
			}
			body = string(data)
		}

		doc := &model.Document{}
		for _, para := range strings.Split(body, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			doc.Blocks = append(doc.Blocks, model.Block{
				Kind: model.KindParagraph,
				Text: para,
			})
		}
		content, err := doc.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding content: %v\n", err)
			os.Exit(1)
		}

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		sessions := loadSessions()
		s := mustSession(sessions)

		n := &model.Note{
			Title:      noteAddTitle,
			Content:    content,
			OwnerUID:   s.UID,
			OwnerEmail: s.Email,
			FolderID:   noteAddFolder,
		}
		if err := mustWriter(db).CreateNote(context.Background(), n); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating note: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Created note %s %s\n", ui.OK("✓"), ui.Accent(fmt.Sprintf("#%d", n.LocalID)), n.Title)
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached notes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		filter := store.NoteFilter{}
		if !noteListAll {
			sessions := loadSessions()
			if s := sessions.Current(); s != nil {
				filter.OwnerUID = s.UID
			}
		}

		notes, err := db.ListNotes(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing notes: %v\n", err)
			os.Exit(1)
		}
		if len(notes) == 0 {
			fmt.Println("No notes")
			return
		}

		for _, n := range notes {
			fmt.Printf("%s %s %s %s\n",
				ui.SyncBadge(string(n.SyncStatus)),
				ui.Accent(fmt.Sprintf("#%d", n.LocalID)),
				n.Title,
				ui.Faint(n.UpdatedAt.Format("2006-01-02 15:04")))
		}
		fmt.Printf("\n%s\n", ui.Faint(ui.Count(len(notes), "note")))
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a note's content",
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

		fmt.Printf("%s %s\n", ui.SyncBadge(string(n.SyncStatus)), ui.Title(n.Title))
		if n.RemoteID != "" {
			fmt.Printf("%s\n", ui.Faint("remote: "+n.RemoteID))
		}
		fmt.Printf("%s\n\n", ui.Faint("updated: "+n.UpdatedAt.Format("2006-01-02 15:04:05")))

		doc, err := model.ParseDocument(n.Content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing content: %v\n", err)
			os.Exit(1)
		}
		if text := doc.PlainText(); text != "" {
			fmt.Println(text)
		}
		if q := doc.QuarantinedCount(); q > 0 {
			fmt.Printf("\n%s %s could not be displayed\n", ui.Warn("⚠"), ui.Count(q, "block"))
		}
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a note",
	Long: `Delete a note from the local cache. If the note was synced, the
backend copy is deleted in the background and will not resurrect from
future pulls.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustLocalID(args[0])

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		if err := mustWriter(db).DeleteNote(context.Background(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting note: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Deleted note %s\n", ui.OK("✓"), ui.Accent(fmt.Sprintf("#%d", id)))
	},
}

// mustLocalID parses a #-prefixed or bare local id.
func mustLocalID(arg string) int64 {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %q is not a note id\n", arg)
		os.Exit(1)
	}
	return id
}

func init() {
	noteAddCmd.Flags().StringVar(&noteAddTitle, "title", "", "note title")
	noteAddCmd.Flags().StringVar(&noteAddBody, "body", "", "note body (\"-\" reads stdin)")
	noteAddCmd.Flags().StringVar(&noteAddFolder, "folder", "", "folder id to file the note under")
	noteListCmd.Flags().BoolVar(&noteListAll, "all", false, "include notes of other accounts")

	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteShowCmd)
	noteCmd.AddCommand(noteRmCmd)
	rootCmd.AddCommand(noteCmd)
}
