package profile

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"

	"buildgen.ai/internal/persistence/codec"
)

// OptionKey is the preferences key the profile blob is stored under.
const OptionKey = "bg_profile"

var (
	prefsBucket     = []byte("prefs")
	buildingsBucket = []byte("buildings")
)

// Store is a bolt file holding the profile and saved building blobs.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open preferences %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{prefsBucket, buildingsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(bucket []byte, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (s *Store) put(bucket []byte, key string, v []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), v)
	})
}

// Load returns the stored profile, or Default when none is stored. A
// malformed blob also yields Default, together with the
// *codec.PersistenceError describing it.
func (s *Store) Load() (*Profile, error) {
	raw, err := s.get(prefsBucket, OptionKey)
	if err != nil {
		return Default(), err
	}
	if raw == nil {
		return Default(), nil
	}
	m, err := codec.DecodeJSON("profile", raw)
	if err != nil {
		return Default(), err
	}
	p, err := Decode(m)
	if err != nil {
		return Default(), err
	}
	return p, nil
}

func (s *Store) Save(p *Profile) error {
	b, err := json.Marshal(Encode(p))
	if err != nil {
		return err
	}
	return s.put(prefsBucket, OptionKey, b)
}

// SaveBuilding keeps a serialized building under its id.
func (s *Store) SaveBuilding(id string, blob []byte) error {
	return s.put(buildingsBucket, id, blob)
}

// LoadBuilding returns nil when nothing is stored under id.
func (s *Store) LoadBuilding(id string) ([]byte, error) {
	return s.get(buildingsBucket, id)
}

func (s *Store) DeleteBuilding(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(buildingsBucket).Delete([]byte(id))
	})
}

// BuildingIDs lists saved buildings in key order.
func (s *Store) BuildingIDs() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(buildingsBucket).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}
