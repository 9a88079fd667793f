package storage

import (
	"context"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalObjectStoreRoundTrip(t *testing.T) {
	files, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := NewLocalObjectStore(files, NewSignedURLSigner("secret", time.Hour), "http://localhost:8080/api/v1/requests/files")

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "approved-requests/req-1-1700000000000.pdf", []byte("%PDF-1.4"), "application/pdf"))

	link, expiresAt, err := store.SignedURL(ctx, "approved-requests/req-1-1700000000000.pdf", 48*time.Hour)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(48*time.Hour), expiresAt, 2*time.Second)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/api/v1/requests/files", parsed.Path)

	file, key, _, err := store.OpenSigned(parsed.Query().Get("token"))
	require.NoError(t, err)
	defer file.Close()
	require.Equal(t, "approved-requests/req-1-1700000000000.pdf", key)
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, store.Delete(ctx, key))
	_, _, _, err = store.OpenSigned(parsed.Query().Get("token"))
	require.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	files, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.Error(t, files.Save("../escape.pdf", []byte("x")))
	require.Error(t, files.Save("", []byte("x")))
}
