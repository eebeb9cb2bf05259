package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var collections = []string{
	CollectionClients,
	CollectionConversations,
	CollectionMessages,
	CollectionProperties,
	CollectionReservations,
	CollectionTransactions,
	CollectionIdempotency,
}

// BoltStore is a bbolt-backed Store. One bucket per collection; keys are
// "<tenantID>/<docID>" so a tenant's documents form one contiguous prefix.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database file and ensures all
// collection buckets exist.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, c := range collections {
			if _, err := tx.CreateBucketIfNotExists([]byte(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func docKey(tenantID, id string) []byte {
	return []byte(tenantID + "/" + id)
}

func (s *BoltStore) Get(ctx context.Context, tenantID, collection, id string, out any) error {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %s", collection)
		}
		v := b.Get(docKey(tenantID, id))
		if v == nil {
			return ErrNotFound
		}
		raw = make([]byte, len(v))
		copy(raw, v)
		return nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *BoltStore) Create(ctx context.Context, tenantID, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	// bbolt update transactions are single-writer, so the existence check and
	// the put are atomic: exactly one concurrent creator wins.
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %s", collection)
		}
		key := docKey(tenantID, id)
		if b.Get(key) != nil {
			return ErrAlreadyExists
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) Update(ctx context.Context, tenantID, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %s", collection)
		}
		key := docKey(tenantID, id)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) Delete(ctx context.Context, tenantID, collection, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %s", collection)
		}
		return b.Delete(docKey(tenantID, id))
	})
}

func (s *BoltStore) Query(ctx context.Context, tenantID, collection string, fn func(id string, raw []byte) error) error {
	prefix := []byte(tenantID + "/")
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %s", collection)
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := strings.TrimPrefix(string(k), string(prefix))
			if err := fn(id, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// TenantIDs enumerates the distinct tenant prefixes present in a collection.
// Cross-tenant by nature; used only by background workers, never by
// request-scoped code.
func (s *BoltStore) TenantIDs(ctx context.Context, collection string) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("unknown collection %s", collection)
		}
		return b.ForEach(func(k, _ []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(k)
			if i := strings.IndexByte(key, '/'); i > 0 {
				tenant := key[:i]
				if _, ok := seen[tenant]; !ok {
					seen[tenant] = struct{}{}
					ids = append(ids, tenant)
				}
			}
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
