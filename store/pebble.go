// Package store persists book snapshots in a local pebble database.
package store

import (
	"encoding/json"
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/rs/xid"

	"github.com/openorder/book"
)

var ErrSnapshotNotFound = errors.New("store: snapshot not found")

// SnapshotStore keeps every saved snapshot under its own id and a latest
// pointer per pair. Ids are xids, so iteration order is creation order.
type SnapshotStore struct {
	db *pebble.DB
}

// Open opens (or creates) a snapshot store at dir.
func Open(dir string) (*SnapshotStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{db: db}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save stores a snapshot durably and points latest/<pair> at it. It
// returns the assigned snapshot id.
func (s *SnapshotStore) Save(snap *book.Snapshot) (string, error) {
	id := xid.New().String()
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(snapshotKey(snap.Pair, id), data, nil); err != nil {
		return "", err
	}
	if err := batch.Set(latestKey(snap.Pair), []byte(id), nil); err != nil {
		return "", err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return "", err
	}
	return id, nil
}

// Load fetches one snapshot by pair and id.
func (s *SnapshotStore) Load(pair, id string) (*book.Snapshot, error) {
	val, closer, err := s.db.Get(snapshotKey(pair, id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var snap book.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// LoadLatest fetches the most recently saved snapshot for a pair.
func (s *SnapshotStore) LoadLatest(pair string) (*book.Snapshot, error) {
	val, closer, err := s.db.Get(latestKey(pair))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	id := string(val)
	closer.Close()
	return s.Load(pair, id)
}

// List returns the ids of every snapshot saved for a pair, oldest first.
func (s *SnapshotStore) List(pair string) ([]string, error) {
	prefix := snapshotKey(pair, "")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: append(append([]byte{}, prefix...), 0xff),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []string
	for iter.First(); iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key()[len(prefix):]))
	}
	return ids, iter.Error()
}

func snapshotKey(pair, id string) []byte {
	return []byte("snapshot/" + pair + "/" + id)
}

func latestKey(pair string) []byte {
	return []byte("latest/" + pair)
}
