// Package upload validates and stages image uploads for the HTTP API.
package upload

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// allowedExtensions are the upload file types the service accepts.
var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
}

// AllowedList returns the accepted extensions, sorted, without dots.
// Used to build client-facing validation messages.
func AllowedList() []string {
	exts := make([]string, 0, len(allowedExtensions))
	for ext := range allowedExtensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(exts)
	return exts
}

// Allowed reports whether the filename carries an accepted extension.
func Allowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := allowedExtensions[ext]
	return ok
}

// Save validates the uploaded file and writes it to a temp file carrying
// the original extension, returning its path. The caller is responsible
// for removing the file via Cleanup once the request completes.
func Save(file multipart.File, filename string) (string, error) {
	if filename == "" {
		return "", eris.New("upload: no file provided")
	}
	if !Allowed(filename) {
		return "", eris.Errorf("upload: file type not allowed, supported: %s",
			strings.Join(AllowedList(), ", "))
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}

	tmp, err := os.CreateTemp("", "cropscout-*"+ext)
	if err != nil {
		return "", eris.Wrap(err, "upload: create temp file")
	}

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", eris.Wrap(err, "upload: write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", eris.Wrap(err, "upload: close temp file")
	}

	zap.L().Debug("saved uploaded file", zap.String("path", tmp.Name()))
	return tmp.Name(), nil
}

// Cleanup removes a staged upload, logging rather than failing when the
// file is already gone.
func Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("failed to clean up temp file",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}
