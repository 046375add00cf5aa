/*
	Package badger provides an embedded sample store using BadgerDB with an
	optional freecache read cache in front of it.
*/
package badger

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/blang/semver"
	"github.com/coocood/freecache"
	"github.com/dgraph-io/badger/v3"

	"github.com/janelia-flyem/trainlabels/dvid"
	"github.com/janelia-flyem/trainlabels/sample"
	"github.com/janelia-flyem/trainlabels/storage"
)

const (
	// DefaultSyncWrites is true if all writes are synced to disk, thereby making db resilient
	// at cost of speed.
	DefaultSyncWrites = false

	// SyncPeriod is how often buffered writes are flushed when writes aren't synced.
	SyncPeriod = 30 * time.Second
)

var samplePrefix = []byte("sample/")

func init() {
	ver, err := semver.Make("0.1.0")
	if err != nil {
		dvid.Errorf("Unable to make semver in badger: %v\n", err)
	}
	e := Engine{"badger", "BadgerDB", ver}
	storage.RegisterEngine(e)
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore returns a badger store.  The config must contain a "path" unless
// the store is in memory.
func (e Engine) NewStore(c storage.Config) (storage.SampleStore, error) {
	return Open(c)
}

// Store is a sample store backed by BadgerDB.
type Store struct {
	directory  string
	db         *badger.DB
	cache      *freecache.Cache
	codec      sample.Codec
	stopSyncCh chan struct{}
}

// Periodically sync to prevent too many writes from being buffered
// if server crashes.
func syncPeriodically(s *Store) {
	ticker := time.NewTicker(SyncPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSyncCh:
			dvid.Infof("Stopping sync goroutine for badger @ %s\n", s.directory)
			return
		case <-ticker.C:
			if err := s.db.Sync(); err != nil {
				dvid.Errorf("badger sync @ %s: %v\n", s.directory, err)
			}
		}
	}
}

// Open returns a badger store, creating the directory at the configured path
// if it doesn't exist.
func Open(c storage.Config) (*Store, error) {
	codec, err := c.Codec()
	if err != nil {
		return nil, err
	}
	var opts badger.Options
	if c.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if c.Path == "" {
			return nil, fmt.Errorf("%q must be specified for BadgerDB configuration", "path")
		}
		if _, err := os.Stat(c.Path); os.IsNotExist(err) {
			dvid.TimeInfof("Database not already at path (%s). Creating directory...\n", c.Path)
			if err := os.MkdirAll(c.Path, 0744); err != nil {
				return nil, fmt.Errorf("can't make directory at %s: %v", c.Path, err)
			}
		}
		opts = badger.DefaultOptions(c.Path)
	}
	opts = opts.WithLogger(dvid.ModeLogger()).WithSyncWrites(DefaultSyncWrites).WithNumVersionsToKeep(1)

	dvid.TimeInfof("Opening badger @ path %q\n", c.Path)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	s := &Store{
		directory: c.Path,
		db:        db,
		codec:     codec,
	}
	if c.CacheMB > 0 {
		s.cache = freecache.NewCache(c.CacheMB * dvid.Mega)
		dvid.Infof("Created freecache of ~ %d MB for badger store.\n", c.CacheMB)
	}
	if !c.InMemory {
		s.stopSyncCh = make(chan struct{})
		go syncPeriodically(s)
	}
	return s, nil
}

func (s *Store) String() string {
	if s.directory == "" {
		return fmt.Sprintf("in-memory badger (%s compression)", s.codec.Compression)
	}
	return fmt.Sprintf("badger @ %s (%s compression)", s.directory, s.codec.Compression)
}

func sampleKey(id string) []byte {
	return append(append([]byte{}, samplePrefix...), id...)
}

func (s *Store) cacheSet(key, value []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(key, value, 0); err != nil {
		dvid.Debugf("not caching sample %s: %v\n", key, err)
	}
}

func (s *Store) PutSample(ctx context.Context, smp *sample.Sample) error {
	value, err := s.codec.Marshal(smp)
	if err != nil {
		return err
	}
	key := sampleKey(smp.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return err
	}
	s.cacheSet(key, value)
	return nil
}

func (s *Store) GetSample(ctx context.Context, id string) (*sample.Sample, error) {
	key := sampleKey(id)
	if s.cache != nil {
		value, err := s.cache.Get(key)
		if err == nil {
			return s.codec.Unmarshal(value)
		}
		if err != freecache.ErrNotFound {
			dvid.Errorf("freecache get of sample %s: %v\n", id, err)
		}
	}
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%s in %s: %w", id, s, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.cacheSet(key, value)
	return s.codec.Unmarshal(value)
}

func (s *Store) SampleIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = samplePrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(samplePrefix); it.ValidForPrefix(samplePrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().KeyCopy(nil)
			ids = append(ids, string(key[len(samplePrefix):]))
		}
		return nil
	})
	return ids, err
}

func (s *Store) DeleteSample(ctx context.Context, id string) error {
	key := sampleKey(id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err == badger.ErrKeyNotFound {
		return fmt.Errorf("%s in %s: %w", id, s, storage.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(key)
	}
	return nil
}

func (s *Store) Close() error {
	if s.stopSyncCh != nil {
		close(s.stopSyncCh)
	}
	return s.db.Close()
}
