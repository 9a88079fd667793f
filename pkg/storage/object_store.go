package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"
)

const localTokenSubject = "artifact"

// LocalObjectStore serves artifacts from disk behind HMAC-signed download links.
type LocalObjectStore struct {
	files       *LocalStorage
	signer      *SignedURLSigner
	downloadURL string
}

// NewLocalObjectStore builds a store whose signed URLs point at downloadURL?token=...
func NewLocalObjectStore(files *LocalStorage, signer *SignedURLSigner, downloadURL string) *LocalObjectStore {
	return &LocalObjectStore{files: files, signer: signer, downloadURL: downloadURL}
}

// Put writes the object, honouring ctx cancellation before touching disk.
func (s *LocalObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.files.Save(key, body)
}

// SignedURL mints a download link valid for ttl.
func (s *LocalObjectStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(localTokenSubject, key, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return fmt.Sprintf("%s?token=%s", s.downloadURL, url.QueryEscape(token)), expiresAt, nil
}

// Delete removes the object.
func (s *LocalObjectStore) Delete(ctx context.Context, key string) error {
	return s.files.Delete(key)
}

// OpenSigned validates a download token and opens the referenced file.
func (s *LocalObjectStore) OpenSigned(token string) (*os.File, string, time.Time, error) {
	subject, key, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if subject != localTokenSubject {
		return nil, "", time.Time{}, fmt.Errorf("token not issued for artifacts")
	}
	file, err := s.files.Open(key)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return file, key, expiresAt, nil
}
