package usersink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	usertypes "github.com/goliatone/go-users/pkg/types"
)

var _ usertypes.ActivitySink = (*FileSink)(nil)

// FileSink appends activity records as JSON lines to a local feed file. It
// stands in for a database-backed sink when the CLI runs on its own.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink writes to path, creating parent directories on first use.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Log(ctx context.Context, record usertypes.ActivityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("usersink: encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("usersink: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("usersink: open feed: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("usersink: write feed: %w", err)
	}
	return f.Close()
}
