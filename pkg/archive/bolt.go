package archive

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// DefaultBucket is the bbolt bucket used when BoltConfig.Bucket is empty.
const DefaultBucket = "taskflow_archive"

// BoltConfig configures a bbolt-backed archive.
type BoltConfig struct {
	// Path of the database file. Default "taskflow.db".
	Path string

	// Bucket holding the snapshots. Default DefaultBucket.
	Bucket string

	// OpenTimeout bounds waiting for the file lock. Default 1s.
	OpenTimeout time.Duration
}

// Bolt is an Archive persisted in a bbolt database. Snapshots are stored
// as JSON keyed by task id.
type Bolt struct {
	mu     sync.RWMutex
	db     *bbolt.DB
	bucket []byte
}

// OpenBolt opens (creating if needed) the database at config.Path.
func OpenBolt(config BoltConfig) (*Bolt, error) {
	if config.Path == "" {
		config.Path = "taskflow.db"
	}
	if config.Bucket == "" {
		config.Bucket = DefaultBucket
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = time.Second
	}

	db, err := bbolt.Open(config.Path, 0600, &bbolt.Options{Timeout: config.OpenTimeout})
	if err != nil {
		return nil, tferrors.NewOperationError("archive", "open", err).WithContext(config.Path)
	}

	b := &Bolt{db: db, bucket: []byte(config.Bucket)}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, tferrors.NewOperationError("archive", "open", fmt.Errorf("failed to initialize bucket: %w", err))
	}
	return b, nil
}

func (b *Bolt) handle() (*bbolt.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, fmt.Errorf("archive: %w", tferrors.ErrClosed)
	}
	return b.db, nil
}

// Put implements Archive.
func (b *Bolt) Put(snap task.Snapshot) error {
	db, err := b.handle()
	if err != nil {
		return err
	}

	enc, err := json.Marshal(snap)
	if err != nil {
		return tferrors.NewOperationError("archive", "put", err).WithContext("task " + snap.ID)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(snap.ID), enc)
	})
	if err != nil {
		return tferrors.NewOperationError("archive", "put", err).WithContext("task " + snap.ID)
	}
	return nil
}

// Get implements Archive.
func (b *Bolt) Get(id string) (task.Snapshot, error) {
	db, err := b.handle()
	if err != nil {
		return task.Snapshot{}, err
	}

	var snap task.Snapshot
	found := false
	err = db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(b.bucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		found = true
		// raw is only valid inside the transaction.
		return json.Unmarshal(raw, &snap)
	})
	if err != nil {
		return task.Snapshot{}, tferrors.NewOperationError("archive", "get", err).WithContext("task " + id)
	}
	if !found {
		return task.Snapshot{}, notFound(id)
	}
	return snap, nil
}

// Len implements Archive.
func (b *Bolt) Len() int {
	db, err := b.handle()
	if err != nil {
		return 0
	}
	n := 0
	_ = db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(b.bucket).Stats().KeyN
		return nil
	})
	return n
}

// Close implements Archive. Calling Close twice is a no-op.
func (b *Bolt) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	b.db = nil
	return nil
}
