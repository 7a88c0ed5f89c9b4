package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/ui"
)

var (
	tagAddColor    string
	folderAddColor string
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		sessions := loadSessions()
		s := mustSession(sessions)

		tag := &model.Tag{
			Name:       args[0],
			Color:      tagAddColor,
			CreatorUID: s.UID,
		}
		if err := mustWriter(db).CreateTag(context.Background(), tag); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating tag: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Created tag %s\n", ui.OK("✓"), ui.Accent(tag.Name))
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		sessions := loadSessions()
		s := mustSession(sessions)

		tags, err := db.ListTags(context.Background(), s.UID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing tags: %v\n", err)
			os.Exit(1)
		}
		if len(tags) == 0 {
			fmt.Println("No tags")
			return
		}
		for _, tag := range tags {
			line := fmt.Sprintf("%s %s %s", ui.SyncBadge(string(tag.SyncStatus)), ui.Accent(fmt.Sprintf("#%d", tag.LocalID)), tag.Name)
			if tag.Color != "" {
				line += " " + ui.Faint(tag.Color)
			}
			fmt.Println(line)
		}
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a tag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustLocalID(args[0])

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		if err := mustWriter(db).DeleteTag(context.Background(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting tag: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Deleted tag %s\n", ui.OK("✓"), ui.Accent(fmt.Sprintf("#%d", id)))
	},
}

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		sessions := loadSessions()
		s := mustSession(sessions)

		folder := &model.Folder{
			Name:     args[0],
			Color:    folderAddColor,
			OwnerUID: s.UID,
		}
		if err := mustWriter(db).CreateFolder(context.Background(), folder); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating folder: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Created folder %s\n", ui.OK("✓"), ui.Accent(folder.Name))
	},
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()
		sessions := loadSessions()
		s := mustSession(sessions)

		folders, err := db.ListFolders(context.Background(), s.UID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing folders: %v\n", err)
			os.Exit(1)
		}
		if len(folders) == 0 {
			fmt.Println("No folders")
			return
		}
		for _, folder := range folders {
			fmt.Printf("%s %s %s\n", ui.SyncBadge(string(folder.SyncStatus)), ui.Accent(fmt.Sprintf("#%d", folder.LocalID)), folder.Name)
		}
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a folder (notes inside are unfiled, not deleted)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := mustLocalID(args[0])

		cfg := mustConfig()
		db := mustStore(cfg)
		defer db.Close()

		if err := mustWriter(db).DeleteFolder(context.Background(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting folder: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Deleted folder %s\n", ui.OK("✓"), ui.Accent(fmt.Sprintf("#%d", id)))
	},
}

func init() {
	tagAddCmd.Flags().StringVar(&tagAddColor, "color", "", "hex color like #ffaa00")
	folderAddCmd.Flags().StringVar(&folderAddColor, "color", "", "hex color like #ffaa00")

	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagRmCmd)
	rootCmd.AddCommand(tagCmd)

	folderCmd.AddCommand(folderAddCmd)
	folderCmd.AddCommand(folderListCmd)
	folderCmd.AddCommand(folderRmCmd)
	rootCmd.AddCommand(folderCmd)
}
