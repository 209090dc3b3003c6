package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// Archiver uploads a session's events as one JSON-lines object. Bodies at or
// above MultipartThreshold go through the multipart uploader.
type Archiver struct {
	writer             domain.BlobWriter
	prefix             string
	MultipartThreshold int64
}

// NewArchiver creates an Archiver writing under prefix.
func NewArchiver(writer domain.BlobWriter, prefix string) *Archiver {
	return &Archiver{
		writer:             writer,
		prefix:             prefix,
		MultipartThreshold: minPartSize,
	}
}

// ArchiveSession uploads events to {prefix}/{yyyy}/{mm}/{dd}/{session}.jsonl,
// dated by started in UTC, and returns the object key. Nothing is uploaded
// for an empty session.
func (a *Archiver) ArchiveSession(ctx context.Context, session string, started time.Time, events []domain.Event) (string, error) {
	if len(events) == 0 {
		return "", nil
	}
	body, err := marshalJSONL(events)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive session %s: %w", session, err)
	}

	key := SessionKey(a.prefix, session, started)
	if int64(len(body)) >= a.MultipartThreshold {
		err = a.writer.PutMultipart(ctx, key, bytes.NewReader(body), minPartSize)
	} else {
		err = a.writer.Put(ctx, key, bytes.NewReader(body), jsonlContentType)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive session %s: %w", session, err)
	}
	return key, nil
}

// SessionKey builds the object key for a session journal.
//
//	journals/2026/10/19/6f1c....jsonl
func SessionKey(prefix, session string, started time.Time) string {
	return path.Join(prefix, started.UTC().Format("2006/01/02"), session+".jsonl")
}

// marshalJSONL encodes each record as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
