// Package extract turns uploaded documents into plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
)

// DefaultMaxFileSize bounds the size of documents accepted for extraction.
const DefaultMaxFileSize int64 = 50 << 20

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrTooLarge    = errors.New("document exceeds the size limit")
	ErrMismatch    = errors.New("document content does not match its extension")
)

// sniffLen is enough for every matcher filetype ships with.
const sniffLen = 262

type Extractor struct {
	maxSize int64
	logger  *zap.Logger
}

func New(maxSize int64, logger *zap.Logger) *Extractor {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{maxSize: maxSize, logger: logger}
}

// Text returns the plain text of the document at path. Any failure degrades
// to an empty string and a warning.
func (e *Extractor) Text(path string) string {
	text, err := e.Extract(path)
	if err != nil {
		e.logger.Warn("failed to extract document text",
			zap.String("path", path),
			zap.Error(err),
		)
		return ""
	}
	return text
}

// Extract returns the plain text of the document at path.
func (e *Extractor) Extract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := extensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > e.maxSize {
		return "", fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, info.Size(), e.maxSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, _ := f.ReadAt(head, 0)
	if err := checkKind(ext, head[:n]); err != nil {
		return "", err
	}

	e.logger.Debug("extracting document",
		zap.String("path", path),
		zap.String("type", ext),
		zap.Int64("size", info.Size()),
	)

	switch ext {
	case ".txt":
		return readText(f)
	case ".docx":
		return readDOCX(f, info.Size())
	default:
		return readPDF(f, info.Size())
	}
}

var extensions = map[string]string{
	".txt":  "",
	".docx": "docx",
	".pdf":  "pdf",
}

// checkKind rejects files whose sniffed type contradicts the extension.
// Unknown content is accepted and left to the format reader.
func checkKind(ext string, head []byte) error {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return nil
	}

	want := extensions[ext]
	switch {
	case want == "" && kind.Extension != "":
		return fmt.Errorf("%w: detected %s", ErrMismatch, kind.Extension)
	case want == "docx" && (kind.Extension == "docx" || kind.Extension == "zip"):
		return nil
	case want != "" && kind.Extension != want:
		return fmt.Errorf("%w: detected %s", ErrMismatch, kind.Extension)
	}
	return nil
}
