package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// PresignExpiry is how long an upload URL stays valid.
const PresignExpiry = time.Hour

var ErrUnsupportedFileType = errors.New("unsupported file type")

// ObjectKey places markdown under {uid}/markdown and images under
// {uid}/images. Anything else is rejected.
func ObjectKey(uid, filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if uid == "" || name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("object key needs a uid and a file name")
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return uid + "/markdown/" + name, nil
	case ".png", ".jpg", ".jpeg":
		return uid + "/images/" + name, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, name)
}

// ContentType guesses the upload content type from the extension.
func ContentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "application/octet-stream"
}
