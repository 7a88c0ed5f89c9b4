package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quillpad/quill/internal/model"
	"github.com/quillpad/quill/internal/session"
)

const sampleNote = `---
title: Meeting notes
tags: [work, planning]
---

# Ignored heading

First paragraph of the note.

- one
- two

` + "```go\nfmt.Println(\"hi\")\n```\n"

func TestParseMarkdown(t *testing.T) {
	fm, title, doc, err := ParseMarkdown([]byte(sampleNote))
	if err != nil {
		t.Fatalf("ParseMarkdown failed: %v", err)
	}

	if title != "Meeting notes" {
		t.Errorf("title = %q, want front matter title", title)
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "work" {
		t.Errorf("tags = %v", fm.Tags)
	}

	// Heading (front matter supplied the title, so it stays in the
	// body), paragraph, list, code.
	if len(doc.Blocks) != 4 {
		t.Fatalf("got %d blocks: %+v", len(doc.Blocks), doc.Blocks)
	}
	if doc.Blocks[0].Kind != model.KindHeading || doc.Blocks[0].Level != 1 {
		t.Errorf("block 0 = %+v", doc.Blocks[0])
	}
	if doc.Blocks[1].Kind != model.KindParagraph || doc.Blocks[1].Text == "" {
		t.Errorf("block 1 = %+v", doc.Blocks[1])
	}
	if doc.Blocks[2].Kind != model.KindList || len(doc.Blocks[2].Items) != 2 {
		t.Errorf("block 2 = %+v", doc.Blocks[2])
	}
	if doc.Blocks[3].Kind != model.KindCode || doc.Blocks[3].Language != "go" {
		t.Errorf("block 3 = %+v", doc.Blocks[3])
	}
}

func TestParseMarkdownTitleFromHeading(t *testing.T) {
	src := []byte("# Shopping list\n\nmilk and eggs\n")
	_, title, doc, err := ParseMarkdown(src)
	if err != nil {
		t.Fatalf("ParseMarkdown failed: %v", err)
	}
	if title != "Shopping list" {
		t.Errorf("title = %q", title)
	}
	// The heading became the title and is not duplicated as a block.
	if len(doc.Blocks) != 1 || doc.Blocks[0].Kind != model.KindParagraph {
		t.Errorf("blocks = %+v", doc.Blocks)
	}
}

func TestParseMarkdownNoFrontMatter(t *testing.T) {
	_, title, doc, err := ParseMarkdown([]byte("just a line\n"))
	if err != nil {
		t.Fatalf("ParseMarkdown failed: %v", err)
	}
	if title != "Imported note" {
		t.Errorf("fallback title = %q", title)
	}
	if len(doc.Blocks) != 1 {
		t.Errorf("blocks = %+v", doc.Blocks)
	}
}

func TestParseMarkdownByteOrderMark(t *testing.T) {
	src := []byte("\xEF\xBB\xBF---\ntitle: Exported\n---\n\nbody text\n")
	fm, title, doc, err := ParseMarkdown(src)
	if err != nil {
		t.Fatalf("ParseMarkdown failed: %v", err)
	}
	if fm.Title != "Exported" || title != "Exported" {
		t.Errorf("front matter not read past the byte order mark: %q", title)
	}
	if len(doc.Blocks) != 1 {
		t.Errorf("blocks = %+v", doc.Blocks)
	}
}

func TestParseMarkdownUnterminatedFrontMatter(t *testing.T) {
	if _, _, _, err := ParseMarkdown([]byte("---\ntitle: broken\n")); err == nil {
		t.Error("expected error for unterminated front matter")
	}
}

func TestParseMarkdownBlockquoteAndOrderedList(t *testing.T) {
	src := []byte("> quoted wisdom\n\n1. first\n2. second\n")
	_, _, doc, err := ParseMarkdown(src)
	if err != nil {
		t.Fatalf("ParseMarkdown failed: %v", err)
	}
	if len(doc.Blocks) != 2 {
		t.Fatalf("blocks = %+v", doc.Blocks)
	}
	if doc.Blocks[0].Kind != model.KindQuote {
		t.Errorf("block 0 = %+v", doc.Blocks[0])
	}
	if doc.Blocks[1].Kind != model.KindList || doc.Blocks[1].Style != model.ListNumbered {
		t.Errorf("block 1 = %+v", doc.Blocks[1])
	}
}

type captureWriter struct {
	mu    sync.Mutex
	notes []*model.Note
}

func (c *captureWriter) CreateNote(_ context.Context, n *model.Note) error {
	n.SetDefaults()
	c.mu.Lock()
	c.notes = append(c.notes, n)
	c.mu.Unlock()
	return nil
}

func (c *captureWriter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notes)
}

func (c *captureWriter) first() *model.Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notes[0]
}

func signedInManager(t *testing.T) *session.Manager {
	t.Helper()
	m := session.NewManager()
	if err := m.Set(&session.Session{UID: "uid-1", Email: "me@example.com"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	return m
}

func TestImportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte(sampleNote), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	sink := &captureWriter{}
	imp := New(dir, sink, signedInManager(t), io.Discard)

	n, err := imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile failed: %v", err)
	}
	if n.Title != "Meeting notes" || n.OwnerUID != "uid-1" {
		t.Errorf("imported note wrong: %+v", n)
	}

	// The content round-trips through the block codec.
	doc, err := model.ParseDocument(n.Content)
	if err != nil {
		t.Fatalf("imported content does not parse: %v", err)
	}
	if len(doc.Blocks) == 0 {
		t.Error("imported content is empty")
	}

	// The source file moved aside.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("source file still in drop directory")
	}
	if _, err := os.Stat(filepath.Join(dir, doneDir, "note.md")); err != nil {
		t.Errorf("archived copy missing: %v", err)
	}
}

func TestImportFileRequiresSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	imp := New(dir, &captureWriter{}, session.NewManager(), io.Discard)
	if _, err := imp.ImportFile(context.Background(), path); err == nil {
		t.Error("expected error importing without a session")
	}
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.markdown", "skip.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("content\n"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	sink := &captureWriter{}
	imp := New(dir, sink, signedInManager(t), io.Discard)

	imported, err := imp.ImportDir(context.Background())
	if err != nil {
		t.Fatalf("ImportDir failed: %v", err)
	}
	if imported != 2 || len(sink.notes) != 2 {
		t.Errorf("imported %d notes, want 2", imported)
	}

	// The non-markdown file stays put.
	if _, err := os.Stat(filepath.Join(dir, "skip.txt")); err != nil {
		t.Errorf("non-markdown file touched: %v", err)
	}
}

func TestWatchImportsDroppedFile(t *testing.T) {
	dir := t.TempDir()
	sink := &captureWriter{}
	imp := New(dir, sink, signedInManager(t), io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		imp.Watch(ctx)
	}()

	// Let the watch come up before dropping the file.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(dir, "dropped.md")
	if err := os.WriteFile(path, []byte("# Dropped\n\nbody\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sink.count() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if sink.count() == 0 {
		t.Fatal("dropped file was not imported")
	}
	if sink.first().Title != "Dropped" {
		t.Errorf("imported title = %q", sink.notes[0].Title)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("watch did not stop")
	}
}
