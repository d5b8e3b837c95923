package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

var snapshotsBucket = []byte("SNAPSHOTS")

// Bolt is a Backend on a bbolt file. Keys are big-endian vehicle ids so the
// bucket iterates in id order.
type Bolt struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Bolt{db: db}, nil
}

func boltKey(id model.VehicleID) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(id))
}

func (b *Bolt) Load(_ context.Context, id model.VehicleID) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(snapshotsBucket).Get(boltKey(id))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (b *Bolt) Save(_ context.Context, id model.VehicleID, payload []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put(boltKey(id), payload)
	})
}

func (b *Bolt) Delete(_ context.Context, id model.VehicleID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Delete(boltKey(id))
	})
}

func (b *Bolt) List(_ context.Context) ([]model.VehicleID, error) {
	var ids []model.VehicleID
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotsBucket).ForEach(func(k, _ []byte) error {
			if len(k) != 4 {
				return fmt.Errorf("malformed key %x", k)
			}
			ids = append(ids, model.VehicleID(binary.BigEndian.Uint32(k)))
			return nil
		})
	})
	return ids, err
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
