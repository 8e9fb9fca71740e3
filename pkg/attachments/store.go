// Package attachments provides the file-attachment store for ticket actions.
package attachments

import "context"

// Upload is one inbound file payload.
type Upload struct {
	Name     string
	Data     []byte
	MimeType string
}

// Store accepts raw file bytes keyed by ticket number and returns a stable
// relative path. The engine stores only the returned path on the history
// entry; it never re-derives the storage layout.
type Store interface {
	Save(ctx context.Context, ticketNumber string, upload Upload) (string, error)
}
