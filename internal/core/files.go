package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirerelay/internal/store"
)

// Upload stores data under a sanitized filename and publishes a file message.
// Uploads are serialised against each other so the last file message in
// history always matches what a download returns, but the store write runs
// outside seq: a slow backend delays other uploads, not joins or chat.
func (h *Hub) Upload(ctx context.Context, sender *Client, filename string, data []byte) (Message, error) {
	name, err := store.SanitizeFilename(filename)
	if err != nil {
		return Message{}, NewError(ErrCodeInvalidFilename, err.Error())
	}

	h.uploads.Lock()
	defer h.uploads.Unlock()

	if err := h.files.Put(ctx, name, data); err != nil {
		return Message{}, fmt.Errorf("store %q: %w", name, err)
	}

	h.seq.Lock()
	defer h.seq.Unlock()
	return h.publishLocked(sender, Message{Kind: KindFile, Filename: name, Data: data})
}

// Download returns the stored file as a server-attributed message.
func (h *Hub) Download(ctx context.Context, filename string) (Message, error) {
	name, err := store.SanitizeFilename(filename)
	if err != nil {
		return Message{}, NewError(ErrCodeInvalidFilename, err.Error())
	}

	data, err := h.files.Get(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Message{}, NewError(ErrCodeNotFound, fmt.Sprintf("file %q not found", name))
		}
		return Message{}, fmt.Errorf("load %q: %w", name, err)
	}

	return Message{
		Kind:      KindFileDownload,
		From:      ServerName,
		Filename:  name,
		Data:      data,
		CreatedAt: h.now(),
	}, nil
}
