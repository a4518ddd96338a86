package badger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/marmos91/dittobrowse/internal/logger"
)

// MaxImportFileSize bounds the size of a single imported file.
const MaxImportFileSize = 64 << 20

// Import copies the tree under dir of fs into the store below prefix.
// Directories become folder records, files become blob records.
//
// Returns the number of records written.
func (s *Store) Import(ctx context.Context, fs billy.Filesystem, dir, prefix string) (int, error) {
	count := 0
	dir = path.Clean("/" + dir)

	err := util.Walk(fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := p[len(dir):]
		if rel == "" {
			return nil
		}
		target := canonical(prefix + "/" + rel)

		if info.IsDir() {
			if err := s.Put(ctx, target, Record{Class: ClassFolder, Modified: info.ModTime()}); err != nil {
				return err
			}
			count++
			return nil
		}

		if !info.Mode().IsRegular() {
			logger.Debug("Skipping non-regular file %s", p)
			return nil
		}
		if info.Size() > MaxImportFileSize {
			logger.Warn("Skipping %s: %d bytes exceeds import limit", p, info.Size())
			return nil
		}

		body, err := readFile(fs, p)
		if err != nil {
			return err
		}
		if err := s.Put(ctx, target, Record{Class: ClassBlob, Size: info.Size(), Modified: info.ModTime(), Body: body}); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("import of %s failed: %w", dir, err)
	}

	logger.Info("Imported %d records from %s", count, dir)
	return count, nil
}

func readFile(fs billy.Filesystem, p string) ([]byte, error) {
	f, err := fs.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
