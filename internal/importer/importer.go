// Package importer turns markdown files dropped into a watched
// directory into notes.
//
// Files may carry a YAML front matter header naming the title and
// tags. Imported files are moved into an imported/ subdirectory so a
// restart does not ingest them twice.
package importer

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/session"
)

// NoteWriter stores an imported note. *mirror.Writer satisfies it.
type NoteWriter interface {
	CreateNote(ctx context.Context, n *model.Note) error
}

// doneDir is where processed files land, relative to the drop dir.
const doneDir = "imported"

// settleDelay gives editors time to finish writing before a file is
// read.
const settleDelay = 200 * time.Millisecond

// Importer ingests markdown files for the signed-in account.
type Importer struct {
	dir      string
	notes    NoteWriter
	sessions *session.Manager
	logger   *log.Logger
}

// New returns an importer for the given drop directory. logOut may be
// nil.
func New(dir string, notes NoteWriter, sessions *session.Manager, logOut io.Writer) *Importer {
	if logOut == nil {
		logOut = log.Default().Writer()
	}
	return &Importer{
		dir:      dir,
		notes:    notes,
		sessions: sessions,
		logger:   log.New(logOut, "[importer] ", log.LstdFlags),
	}
}

// ImportFile ingests one markdown file and moves it aside.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*model.Note, error) {
	s, err := imp.sessions.Require(ctx)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fm, title, doc, err := ParseMarkdown(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	content, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	n := &model.Note{
		Title:      title,
		Content:    content,
		OwnerUID:   s.UID,
		OwnerEmail: s.Email,
	}
	if err := imp.notes.CreateNote(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store imported note: %w", err)
	}
	if len(fm.Tags) > 0 {
		// Tag assignment needs remote tag ids the import does not
		// have; the names are kept visible in the log instead.
		imp.logger.Printf("imported %s without tags %v", filepath.Base(path), fm.Tags)
	}

	if err := imp.archive(path); err != nil {
		imp.logger.Printf("imported %s but could not move it aside: %v", path, err)
	}
	return n, nil
}

// ImportDir ingests every markdown file currently in the drop
// directory and returns how many notes were created.
func (imp *Importer) ImportDir(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(imp.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read drop directory: %w", err)
	}

	imported := 0
	for _, entry := range entries {
		if entry.IsDir() || !isMarkdown(entry.Name()) {
			continue
		}
		path := filepath.Join(imp.dir, entry.Name())
		if _, err := imp.ImportFile(ctx, path); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// Watch ingests files as they appear in the drop directory. It blocks
// until ctx is cancelled.
func (imp *Importer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(imp.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create drop directory: %w", err)
	}
	if err := watcher.Add(imp.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", imp.dir, err)
	}
	imp.logger.Printf("watching %s", imp.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isMarkdown(event.Name) {
				continue
			}

			// Editors write in bursts; wait for the file to settle.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(settleDelay):
			}
			if _, err := os.Stat(event.Name); err != nil {
				continue
			}

			n, err := imp.ImportFile(ctx, event.Name)
			if err != nil {
				imp.logger.Printf("failed to import %s: %v", event.Name, err)
				continue
			}
			imp.logger.Printf("imported %q from %s", n.Title, filepath.Base(event.Name))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			imp.logger.Printf("watch error: %v", err)
		}
	}
}

func (imp *Importer) archive(path string) error {
	dest := filepath.Join(imp.dir, doneDir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dest, filepath.Base(path)))
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}
