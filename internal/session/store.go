// Package session persists research run artifacts on disk. Each run gets
// its own timestamped directory; artifacts inside it are write-once.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrArtifactExists is returned when saving an artifact name that has
// already been written for the session.
var ErrArtifactExists = errors.New("artifact already exists")

// Store manages per-session artifact directories under a root path.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("sessions directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions root: %w", err)
	}
	return &Store{root: dir, logger: logger}, nil
}

// NewSessionID returns a fresh session identifier. The timestamp prefix
// keeps directory listings chronological; the random suffix prevents
// collisions between runs started in the same second.
func NewSessionID(now time.Time) string {
	return now.Format("2006-01-02_15-04-05") + "-" + uuid.NewString()[:8]
}

// Create makes the directory for sessionID and returns its path.
func (s *Store) Create(sessionID string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create session dir: %w", err)
	}
	s.logger.Debug("Session directory created", zap.String("session_id", sessionID))
	return dir, nil
}

// SaveJSON writes v as indented JSON to <session>/<name>. The artifact
// must not already exist.
func (s *Store) SaveJSON(sessionID, name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return s.save(sessionID, name, append(data, '\n'))
}

// SaveMarkdown writes content to <session>/<name>. The artifact must not
// already exist.
func (s *Store) SaveMarkdown(sessionID, name, content string) (string, error) {
	return s.save(sessionID, name, []byte(content))
}

func (s *Store) save(sessionID, name string, data []byte) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	path := filepath.Join(s.root, sessionID, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrArtifactExists, name)
		}
		return "", fmt.Errorf("failed to create artifact %s: %w", name, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	s.logger.Debug("Artifact saved",
		zap.String("session_id", sessionID),
		zap.String("artifact", name),
		zap.Int("bytes", len(data)))
	return path, nil
}

// ReadArtifact returns the raw contents of a stored artifact.
func (s *Store) ReadArtifact(sessionID, name string) ([]byte, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if name == "" || name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid artifact name %q", name)
	}
	return os.ReadFile(filepath.Join(s.root, sessionID, name))
}

// SessionInfo describes one stored session.
type SessionInfo struct {
	ID        string   `json:"id"`
	Path      string   `json:"path"`
	Artifacts []string `json:"artifacts"`
}

// List returns stored sessions, newest first.
func (s *Store) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions root: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := SessionInfo{
			ID:   entry.Name(),
			Path: filepath.Join(s.root, entry.Name()),
		}
		if files, err := os.ReadDir(info.Path); err == nil {
			for _, f := range files {
				if !f.IsDir() {
					info.Artifacts = append(info.Artifacts, f.Name())
				}
			}
			sort.Strings(info.Artifacts)
		}
		sessions = append(sessions, info)
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID > sessions[j].ID })
	return sessions, nil
}

func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID is required")
	}
	if strings.ContainsAny(id, `/\`) || id != filepath.Base(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid session ID %q", id)
	}
	return nil
}
