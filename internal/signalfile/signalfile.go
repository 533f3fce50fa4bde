// Package signalfile implements the shutdown handshake for portless fleet
// units. The supervisor drops a timestamped file under the fleet root; a
// unit without an HTTP surface watches for it and disconnects gracefully
// before the supervisor escalates to signals.
package signalfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileName is shared with the sibling services and must not change.
const FileName = "bot_shutdown.signal"

// Path returns the signal file location under the fleet root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Write drops the shutdown request. The content is the request time in unix
// seconds, matching what the units already parse.
func Write(root string) error {
	content := strconv.FormatInt(time.Now().Unix(), 10)
	if err := os.WriteFile(Path(root), []byte(content), 0o644); err != nil {
		return fmt.Errorf("signalfile: write: %w", err)
	}
	return nil
}

// Remove clears the shutdown request. A missing file is not an error.
func Remove(root string) error {
	err := os.Remove(Path(root))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("signalfile: remove: %w", err)
	}
	return nil
}

// Exists reports whether a shutdown request is pending.
func Exists(root string) bool {
	_, err := os.Stat(Path(root))
	return err == nil
}

// RequestedAt parses the request timestamp from an existing signal file.
func RequestedAt(root string) (time.Time, error) {
	data, err := os.ReadFile(Path(root))
	if err != nil {
		return time.Time{}, fmt.Errorf("signalfile: read: %w", err)
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("signalfile: parse: %w", err)
	}
	return time.Unix(secs, 0), nil
}
