// Package templates persists segmented templates as JSON documents.
package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spigell/segcompare/internal/segment"
	"go.uber.org/zap"
)

const (
	DefaultDir = "segments"
	extension  = ".json"
)

var (
	ErrNotFound    = errors.New("template not found")
	ErrInvalidName = errors.New("invalid template name")
)

type Store struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
}

// NewStore returns a store keeping templates under dir on fs.
// A nil fs means the operating system filesystem.
func NewStore(fs afero.Fs, dir string, logger *zap.Logger) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fs: fs, dir: dir, logger: logger}
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes the template atomically: the JSON goes to a temporary file which
// is then renamed over the target.
func (s *Store) Save(name string, m *segment.Map) error {
	file, err := fileName(name)
	if err != nil {
		return err
	}
	if m == nil {
		m = segment.FromSections()
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding template %s: %w", file, err)
	}

	var data bytes.Buffer
	if err := json.Indent(&data, raw, "", "    "); err != nil {
		return fmt.Errorf("encoding template %s: %w", file, err)
	}
	data.WriteByte('\n')

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating template dir %s: %w", s.dir, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "."+file+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", file, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		if rmErr := s.fs.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn("failed to remove temporary template", zap.String("path", tmpName), zap.Error(rmErr))
		}
	}

	if _, err := tmp.Write(data.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing template %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("writing template %s: %w", file, err)
	}

	target := filepath.Join(s.dir, file)
	if err := s.fs.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("replacing template %s: %w", file, err)
	}

	s.logger.Info("template saved",
		zap.String("name", file),
		zap.Int("sections", m.Len()),
	)

	return nil
}

func (s *Store) Load(name string) (*segment.Map, error) {
	file, err := fileName(name)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, file))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", file, err)
	}

	m := segment.FromSections()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decoding template %s: %w", file, err)
	}

	return m, nil
}

// List returns the stored template file names in lexical order.
func (s *Store) List() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing templates in %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), extension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	return names, nil
}

func (s *Store) Delete(name string) error {
	file, err := fileName(name)
	if err != nil {
		return err
	}

	err = s.fs.Remove(filepath.Join(s.dir, file))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, file)
	}
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", file, err)
	}

	s.logger.Info("template deleted", zap.String("name", file))
	return nil
}

func fileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: empty name", ErrInvalidName)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if !strings.EqualFold(filepath.Ext(name), extension) {
		name += extension
	}
	return name, nil
}
