package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quillpad/quill/internal/config"
	"github.com/quillpad/quill/internal/mirror"
	"github.com/quillpad/quill/internal/remote"
	"github.com/quillpad/quill/internal/session"
	"github.com/quillpad/quill/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Local-first notes with background sync",
	Long: `Quill keeps your notes, calendar events, tags, and folders in a
local SQLite cache and mirrors them to the cloud backend in the
background.

Edits always land locally first, so everything works offline; the sync
daemon uploads queued changes and pulls remote updates whenever the
backend is reachable.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $QUILL_HOME/config.yaml)")
}

// mustConfig loads configuration or exits.
func mustConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error in config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// mustStore opens the local cache or exits.
func mustStore(cfg *config.Config) *store.DB {
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}
	return db
}

func mustWriter(db *store.DB) *mirror.Writer {
	return mirror.NewWriter(db, os.Stderr)
}

// sessionPath is where the signed-in identity persists between runs.
func sessionPath() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.json"), nil
}

// loadSessions builds a session manager seeded from the session file.
// A missing file just means signed out.
func loadSessions() *session.Manager {
	m := session.NewManager()

	path, err := sessionPath()
	if err != nil {
		return m
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring corrupt session file: %v\n", err)
		return m
	}
	if err := m.Set(&s); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring invalid saved session: %v\n", err)
	}
	return m
}

func saveSession(s *session.Session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func clearSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// mustSession returns the active session or exits with a hint.
func mustSession(m *session.Manager) *session.Session {
	s := m.Current()
	if s == nil {
		fmt.Fprintf(os.Stderr, "Error: not signed in\n")
		fmt.Fprintf(os.Stderr, "Run 'quill login --token <id-token>' first\n")
		os.Exit(1)
	}
	return s
}

// dialRemote connects to the backend named in cfg.
func dialRemote(ctx context.Context, cfg *config.Config) (*remote.Client, error) {
	if !cfg.RemoteEnabled() {
		return nil, fmt.Errorf("no backend configured: set remote.project_id")
	}
	return remote.Dial(ctx, remote.Config{
		ProjectID:       cfg.Remote.ProjectID,
		CredentialsFile: cfg.Remote.CredentialsFile,
		CallTimeout:     cfg.Remote.CallTimeout,
		LogOutput:       os.Stderr,
	})
}

func mustRemote(ctx context.Context, cfg *config.Config) *remote.Client {
	client, err := dialRemote(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to backend: %v\n", err)
		os.Exit(1)
	}
	return client
}
