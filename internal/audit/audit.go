// Package audit implements the append-only, redacting JSON-line event log
// required of every submission-service response.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// RedactionToken replaces the value of any redacted field.
const RedactionToken = "***"

// redactKeys is the fixed set of field names whose values never reach disk.
var redactKeys = map[string]bool{
	"password":              true,
	"mnemonic":              true,
	"encrypted_private_key": true,
	"X-EZ-Password":         true,
	"X-EZ-Token":            true,
}

// Logger appends sanitized JSON lines to a single log file under its own
// mutex, flushing before the lock is released.
type Logger struct {
	mu   sync.Mutex
	path string
}

// New returns a Logger writing to path, creating its parent directory.
func New(path string) (*Logger, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	return &Logger{path: path}, nil
}

// Log sanitizes event recursively and appends it as one JSON line.
func (l *Logger) Log(event map[string]any) error {
	sanitized := sanitize(event)
	line, err := json.Marshal(sanitized)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return err
	}
	return f.Sync()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func sanitize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if redactKeys[k] {
				out[k] = RedactionToken
			} else {
				out[k] = sanitize(item)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitize(item)
		}
		return out
	default:
		return v
	}
}
