// Package geoio reads and writes the pipeline's GeoJSON FeatureCollections.
//
// Paths ending in ".zst" are zstd-compressed on disk. Outputs are staged to
// temporary files next to their destination and renamed into place only
// once every output of a run has been staged, so a failed run leaves the
// previous outputs untouched.
package geoio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"shadowroads/internal/types"
)

// zstdSuffix marks compressed files.
const zstdSuffix = ".zst"

// Store reads inputs and commits outputs on the local filesystem.
type Store struct {
	logger *slog.Logger

	// decoderPool provides reusable zstd decoders.
	decoderPool sync.Pool
}

// NewStore creates a Store that logs through logger.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					// Cannot fail with nil input and default options.
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}
}

// readFile returns the decoded contents of path. A missing file is
// input_missing; anything else that stops the read is input_invalid.
func (s *Store) readFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInputMissing,
			"input file not found", err, map[string]any{"path": path})
	}
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInputInvalid,
			"failed to read input file", err, map[string]any{"path": path})
	}
	if !compressed(path) {
		return raw, nil
	}

	dec := s.decoderPool.Get().(*zstd.Decoder)
	defer s.decoderPool.Put(dec)

	data, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInputInvalid,
			"failed to decompress input file", err, map[string]any{"path": path})
	}
	return data, nil
}

// Output is one file to be written by Commit.
type Output struct {
	Path string
	Data []byte
}

// Commit writes all outputs or none of them. Each payload is first written
// to a temporary file in the destination directory; only when every file is
// staged are they renamed over their targets.
func (s *Store) Commit(outputs ...Output) error {
	staged := make([]string, 0, len(outputs))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for _, out := range outputs {
		tmp, err := s.stage(out)
		if err != nil {
			cleanup()
			return types.NewAppErrorWithDetails(types.ErrCodeOutputWrite,
				"failed to stage output", err, map[string]any{"path": out.Path})
		}
		staged = append(staged, tmp)
	}

	for i, out := range outputs {
		if err := os.Rename(staged[i], out.Path); err != nil {
			// Already-renamed outputs cannot be rolled back; drop the rest.
			staged = staged[i:]
			cleanup()
			return types.NewAppErrorWithDetails(types.ErrCodeOutputWrite,
				"failed to replace output", err, map[string]any{"path": out.Path})
		}
		s.logger.Debug("output written", "path", out.Path, "bytes", len(out.Data))
	}
	return nil
}

func (s *Store) stage(out Output) (string, error) {
	dir := filepath.Dir(out.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(out.Path)+".*.tmp")
	if err != nil {
		return "", err
	}

	if err := writePayload(f, out); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func writePayload(w io.Writer, out Output) error {
	if !compressed(out.Path) {
		_, err := io.Copy(w, bytes.NewReader(out.Data))
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(out.Data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), zstdSuffix)
}
