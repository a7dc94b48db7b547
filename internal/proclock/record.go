package proclock

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxRecordSize bounds how much of a record is read. A valid record is a
// decimal integer, so anything longer is already corrupt.
const maxRecordSize = 32

// readRecord returns the identity stored at path. ok is false when no
// record exists.
func readRecord(path string) (id Identity, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to open lock record: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxRecordSize+1))
	if err != nil {
		return 0, false, fmt.Errorf("failed to read lock record: %w", err)
	}

	id, err = parseIdentity(data)
	if err != nil {
		return 0, false, fmt.Errorf("%w at %s: %v", ErrInvalidRecord, path, err)
	}
	return id, true, nil
}

func parseIdentity(data []byte) (Identity, error) {
	if len(data) > maxRecordSize {
		return 0, fmt.Errorf("record exceeds %d bytes", maxRecordSize)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, errors.New("record is empty")
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("record %q is not a decimal integer", text)
	}
	if n <= 0 {
		return 0, fmt.Errorf("record %q is not a positive identity", text)
	}
	return Identity(n), nil
}

// writeRecord replaces the record at path with id. The new content is
// written to a temporary file in the same directory and renamed over the
// record, so readers see either the old identity or the new one.
func writeRecord(path string, id Identity) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp record: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0644); err != nil {
		return fmt.Errorf("failed to set record permissions: %w", err)
	}
	if _, err := tmp.WriteString(strconv.FormatInt(int64(id), 10)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to install record: %w", err)
	}
	committed = true
	return nil
}

// removeRecord deletes the record. A missing record is not an error.
func removeRecord(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove lock record: %w", err)
	}
	return nil
}
