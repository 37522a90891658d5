package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	d, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func encodePebbleEntry(e Entry) ([]byte, error) { return json.Marshal(e) }
func decodePebbleEntry(val []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (p *PebbleStore) Lookup(desc string) (Entry, bool, error) {
	v, closer, err := p.db.Get([]byte(desc))
	if err == pebble.ErrNotFound {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	e, err := decodePebbleEntry(v)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (p *PebbleStore) Save(desc string, e Entry) error {
	if e.UpdatedAt == 0 {
		e.UpdatedAt = NowUnix()
	}
	bytes, err := encodePebbleEntry(e)
	if err != nil {
		return err
	}
	// Sync: a resolution the operator just typed in must survive a crash.
	if err := p.db.Set([]byte(desc), bytes, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleStore) Range(fn func(desc string, e Entry) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		e, err := decodePebbleEntry(v)
		if err != nil {
			return err
		}
		if err := fn(string(k), e); err != nil {
			return err
		}
	}
	return nil
}
