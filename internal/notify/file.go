package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dwsmith1983/tripwire/pkg/types"
)

// FileNotifier appends notifications as JSON lines to a file.
type FileNotifier struct {
	name string
	path string
	now  func() time.Time
	mu   sync.Mutex
}

type fileRecord struct {
	types.Notification
	Timestamp time.Time `json:"timestamp"`
}

// NewFileNotifier creates a file notifier.
func NewFileNotifier(name, path string) (*FileNotifier, error) {
	// Ensure the file is writable
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening notification file: %w", err)
	}
	_ = f.Close()

	if name == "" {
		name = "file"
	}
	return &FileNotifier{name: name, path: path, now: time.Now}, nil
}

// Name returns the notifier identifier.
func (s *FileNotifier) Name() string { return s.name }

// Send appends the notification as a JSON line to the configured file.
func (s *FileNotifier) Send(_ context.Context, n types.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	data, err := json.Marshal(fileRecord{Notification: n, Timestamp: s.now()})
	if err != nil {
		return err
	}

	_, err = f.Write(append(data, '\n'))
	return err
}
