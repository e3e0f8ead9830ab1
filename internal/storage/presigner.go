// Package storage obtains presigned object URLs and uploads document
// content through them.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/docflow/docflow/client/internal/api"
)

// Presigner hands out a URL the caller can PUT an object to.
type Presigner interface {
	UploadURL(ctx context.Context, uid, filename string) (string, error)
}

// RemotePresigner asks the minio-api service for the URL.
type RemotePresigner struct {
	client *api.Client
}

func NewRemotePresigner(client *api.Client) *RemotePresigner {
	return &RemotePresigner{client: client}
}

func (p *RemotePresigner) UploadURL(ctx context.Context, uid, filename string) (string, error) {
	if _, err := ObjectKey(uid, filename); err != nil {
		return "", err
	}
	var resp struct {
		Message string `json:"message"`
		URL     string `json:"url"`
	}
	body := map[string]string{"filename": filename}
	if err := p.client.Post(ctx, "/minio-api/generate-upload-url/"+url.PathEscape(uid), body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("presign %s: empty url in response", filename)
	}
	return resp.URL, nil
}

// Uploader presigns and then PUTs the object.
type Uploader struct {
	presigner Presigner
	client    *api.Client
}

func NewUploader(p Presigner, client *api.Client) *Uploader {
	return &Uploader{presigner: p, client: client}
}

// Upload stores r as filename for uid and returns the object URL without
// its signature.
func (u *Uploader) Upload(ctx context.Context, uid, filename string, r io.Reader, size int64) (string, error) {
	signed, err := u.presigner.UploadURL(ctx, uid, filename)
	if err != nil {
		return "", err
	}
	if err := u.client.PutObject(ctx, signed, r, size, ContentType(filename)); err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	loc, err := url.Parse(signed)
	if err != nil {
		return signed, nil
	}
	loc.RawQuery = ""
	return loc.String(), nil
}
