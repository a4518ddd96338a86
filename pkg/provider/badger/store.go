// Package badger implements a browsable record container backed by BadgerDB.
//
// Every record carries a class. Listing a container yields generic holders
// that are specialized through the registry's capability table, so other
// packages can teach the browser about new record classes without touching
// this one.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittobrowse/pkg/browsable"
)

// Config configures the record store.
type Config struct {
	// DBPath is the directory holding the database files
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the database in memory only (DBPath is ignored)
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// Store persists records keyed by path.
//
// Thread Safety: Safe for concurrent use; BadgerDB transactions provide
// isolation.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the record store.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Database location and cache sizes
//
// Returns:
//   - *Store: Ready-to-use store; call Close when done
//   - error: Error if the database cannot be opened
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, errors.New("badger store requires db_path unless in_memory is set")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := cfg.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}

	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func canonical(p string) string {
	return browsable.Join(browsable.Decompose(p))
}

// Put stores rec at path p. Missing ancestors are created as folders.
func (s *Store) Put(ctx context.Context, p string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = canonical(p)
	if p == "/" {
		return &browsable.BrowseError{Code: browsable.ErrInvalidArgument, Message: "cannot store a record at the root", Path: p}
	}
	if rec.Class == ClassFolder {
		rec.Body = nil
	} else if rec.Size == 0 {
		rec.Size = int64(len(rec.Body))
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := ensureAncestors(txn, p, rec); err != nil {
			return err
		}
		parent, name := splitPath(p)
		if err := txn.Set(keyRecord(parent, name), data); err != nil {
			return err
		}
		if len(rec.Body) == 0 {
			return txn.Delete(keyBody(p))
		}
		return txn.Set(keyBody(p), rec.Body)
	})
}

func ensureAncestors(txn *badger.Txn, p string, rec Record) error {
	var missing []string
	for parent, _ := splitPath(p); parent != "/"; parent, _ = splitPath(parent) {
		pp, name := splitPath(parent)
		item, err := txn.Get(keyRecord(pp, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			missing = append(missing, parent)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", parent, err)
		}

		var existing Record
		if err := item.Value(func(val []byte) error {
			existing, err = decodeRecord(val)
			return err
		}); err != nil {
			return err
		}
		if existing.Class != ClassFolder {
			return &browsable.BrowseError{Code: browsable.ErrNotContainer, Message: "ancestor is not a folder", Path: parent}
		}
		break
	}

	for _, dir := range missing {
		data, err := encodeRecord(Record{Class: ClassFolder, Modified: rec.Modified})
		if err != nil {
			return err
		}
		pp, name := splitPath(dir)
		if err := txn.Set(keyRecord(pp, name), data); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the record stored at p, body included.
func (s *Store) Get(ctx context.Context, p string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	p = canonical(p)
	if p == "/" {
		return Record{Class: ClassFolder}, nil
	}

	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if rec, err = stat(txn, p); err != nil {
			return err
		}
		rec.Body, err = readBody(txn, p)
		return err
	})
	return rec, err
}

// stat reads the metadata of the record at canonical path p.
func stat(txn *badger.Txn, p string) (Record, error) {
	parent, name := splitPath(p)
	item, err := txn.Get(keyRecord(parent, name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, &browsable.BrowseError{Code: browsable.ErrNotFound, Message: "record not found", Path: p}
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get record: %w", err)
	}

	var rec Record
	err = item.Value(func(val []byte) error {
		rec, err = decodeRecord(val)
		return err
	})
	return rec, err
}

// readBody returns the body stored for p, or nil if it has none.
func readBody(txn *badger.Txn, p string) ([]byte, error) {
	item, err := txn.Get(keyBody(p))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get body of %s: %w", p, err)
	}
	return item.ValueCopy(nil)
}

// statChild reads the metadata of one child, without its body.
func (s *Store) statChild(parent, name string) (Record, error) {
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = stat(txn, childPath(parent, name))
		return err
	})
	return rec, err
}

// body reads the body of the record at canonical path p.
func (s *Store) body(p string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		data, err = readBody(txn, p)
		return err
	})
	return data, err
}

// Delete removes the record at p together with all its descendants.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p = canonical(p)
	if p == "/" {
		return &browsable.BrowseError{Code: browsable.ErrInvalidArgument, Message: "cannot delete the root", Path: p}
	}

	return s.db.Update(func(txn *badger.Txn) error {
		parent, name := splitPath(p)
		key := keyRecord(parent, name)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return &browsable.BrowseError{Code: browsable.ErrNotFound, Message: "record not found", Path: p}
		} else if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}

		keys := [][]byte{key, keyBody(p)}
		for _, prefix := range [][]byte{keyChildPrefix(p), keyDescendantPrefix(p), keyBodyDescendantPrefix(p)} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("failed to delete %s: %w", k, err)
			}
		}
		return nil
	})
}

// entry is one child read during a listing scan.
type entry struct {
	name   string
	record Record
}

// list reads the metadata of at most limit children of the container at p,
// in key order. limit 0 means no limit.
func (s *Store) list(p string, limit int) ([]entry, error) {
	var entries []entry

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := keyChildPrefix(p)

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}

			item := it.Item()
			key := item.Key()
			if len(key) <= len(prefix) {
				continue
			}
			name := string(key[len(prefix):])

			var rec Record
			err := item.Value(func(val []byte) error {
				var err error
				rec, err = decodeRecord(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", name, err)
			}
			entries = append(entries, entry{name: name, record: rec})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
