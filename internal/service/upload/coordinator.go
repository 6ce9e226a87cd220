// Package upload sequences the second half of the send protocol: once the
// server confirms a text message, every pending file is uploaded against
// the new message id. Upload responses are informational only; the
// canonical attachment records come back over the push channel.
package upload

import (
	"context"
	"sync"

	"github.com/luis-byt/aware-chat/internal/model/chat"
)

// Uploader is the slice of the REST client the coordinator needs.
type Uploader interface {
	UploadAttachment(ctx context.Context, messageID string, file chat.PendingFile) (chat.Attachment, error)
}

// FileError records one rejected upload.
type FileError struct {
	Name string
	Err  error
}

// Result is the settlement of one upload batch: every outcome is known.
// A failed upload never rolls back the already-sent text message.
type Result struct {
	MessageID string
	Uploaded  int
	Failed    []FileError
}

// OK reports whether every upload in the batch succeeded.
func (r Result) OK() bool {
	return len(r.Failed) == 0
}

// Coordinator fans pending files out as concurrent uploads.
type Coordinator struct {
	uploader Uploader
}

// NewCoordinator builds a coordinator over the given uploader.
func NewCoordinator(uploader Uploader) *Coordinator {
	return &Coordinator{uploader: uploader}
}

// Run uploads every file against messageID and blocks until the batch has
// settled. Order across files is not significant; failures are collected
// per file and reported, never retried.
func (c *Coordinator) Run(ctx context.Context, messageID string, files []chat.PendingFile) Result {
	result := Result{MessageID: messageID}
	if len(files) == 0 {
		return result
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, file := range files {
		wg.Add(1)
		go func(file chat.PendingFile) {
			defer wg.Done()
			_, err := c.uploader.UploadAttachment(ctx, messageID, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, FileError{Name: file.Name, Err: err})
				return
			}
			result.Uploaded++
		}(file)
	}
	wg.Wait()

	return result
}
