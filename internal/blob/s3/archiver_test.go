package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
)

type recordingWriter struct {
	path      string
	body      []byte
	multipart bool
	err       error
}

func (w *recordingWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	w.path = path
	w.body, _ = io.ReadAll(data)
	return w.err
}

func (w *recordingWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	w.path = path
	w.multipart = true
	w.body, _ = io.ReadAll(data)
	return w.err
}

func sampleEvents() []domain.Event {
	ts := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)
	return []domain.Event{
		{Type: domain.EventSessionStarted, Session: "s1", Paper: true, Timestamp: ts},
		{Type: domain.EventPositionOpened, Session: "s1", MarketID: "m1", Paper: true, Timestamp: ts},
	}
}

func TestSessionKey(t *testing.T) {
	started := time.Date(2026, 1, 5, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	assert.Equal(t, "journals/2026/01/06/abc.jsonl", SessionKey("journals", "abc", started))
	assert.Equal(t, "2026/01/06/abc.jsonl", SessionKey("", "abc", started))
}

func TestArchiveSession_SmallBodyUsesPut(t *testing.T) {
	w := &recordingWriter{}
	a := NewArchiver(w, "journals")

	key, err := a.ArchiveSession(context.Background(), "s1", time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC), sampleEvents())
	require.NoError(t, err)
	assert.Equal(t, "journals/2026/10/19/s1.jsonl", key)
	assert.Equal(t, key, w.path)
	assert.False(t, w.multipart)

	sc := bufio.NewScanner(bytes.NewReader(w.body))
	var lines int
	for sc.Scan() {
		var evt domain.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &evt))
		assert.Equal(t, "s1", evt.Session)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestArchiveSession_LargeBodyUsesMultipart(t *testing.T) {
	w := &recordingWriter{}
	a := NewArchiver(w, "journals")
	a.MultipartThreshold = 1

	_, err := a.ArchiveSession(context.Background(), "s1", time.Now(), sampleEvents())
	require.NoError(t, err)
	assert.True(t, w.multipart)
}

func TestArchiveSession_Empty(t *testing.T) {
	w := &recordingWriter{}
	key, err := NewArchiver(w, "journals").ArchiveSession(context.Background(), "s1", time.Now(), nil)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, w.path)
}

func TestArchiveSession_WriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("boom")}
	_, err := NewArchiver(w, "journals").ArchiveSession(context.Background(), "s1", time.Now(), sampleEvents())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://x.example", normaliseEndpoint("http://x.example", true))
}
