package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/importer"
	"github.com/quillpad/quill/internal/ui"
)

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import markdown files as notes",
	Long: `Import markdown files into the local cache. With file arguments each
file becomes one note; with no arguments every markdown file in the
configured import directory is imported.

Files may carry YAML front matter (title, folder, tags). Imported
sources are moved into an 'imported/' subdirectory next to where they
were found.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		sessions := loadSessions()
		mustSession(sessions)

		ctx := context.Background()
		imp := importer.New(cfg.Import.Dir, mustWriter(db), sessions, os.Stderr)

		if len(args) == 0 {
			n, err := imp.ImportDir(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", cfg.Import.Dir, err)
				os.Exit(1)
			}
			fmt.Printf("%s Imported %s from %s\n", ui.OK("✓"), ui.Count(n, "note"), cfg.Import.Dir)
			return
		}

		for _, path := range args {
			note, err := imp.ImportFile(ctx, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", path, err)
				os.Exit(1)
			}
			fmt.Printf("%s Imported %s as note %s\n", ui.OK("✓"), path, ui.Accent(fmt.Sprintf("#%d", note.LocalID)))
		}
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
