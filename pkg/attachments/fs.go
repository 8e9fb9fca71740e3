package attachments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FSStore writes attachments under <root>/<ticketNumber>/<timestamp>-<name>
// and returns the path relative to root.
type FSStore struct {
	root string
}

// NewFSStore creates a file-system attachment store rooted at root.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: strings.Replace(root, "file://", "", 1)}
}

// Save writes the upload and returns its relative path.
func (s *FSStore) Save(ctx context.Context, ticketNumber string, upload Upload) (string, error) {
	if err := validateComponent(ticketNumber); err != nil {
		return "", fmt.Errorf("invalid ticket number: %w", err)
	}

	name := filepath.Base(upload.Name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("attachment name is empty")
	}

	dir := filepath.Join(s.root, ticketNumber)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	// Timestamp prefix keeps repeated uploads of the same file name distinct.
	stored := strconv.FormatInt(time.Now().UnixNano(), 10) + "-" + name

	err = os.WriteFile(filepath.Join(dir, stored), upload.Data, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to write attachment %s: %w", name, err)
	}

	return path.Join(ticketNumber, stored), nil
}

func validateComponent(component string) error {
	if component == "" {
		return errors.New("cannot be empty")
	}

	if strings.Contains(component, "..") || strings.ContainsAny(component, "/\\") {
		return errors.New("contains invalid characters")
	}

	return nil
}
