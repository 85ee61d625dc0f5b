package objstore

import (
	"context"
	"errors"
	"path"

	"clawoffice.ai/internal/sim/routes"
)

const catalogObject = "routes/catalog.json"

// CatalogStore persists the route catalog as a single JSON object.
type CatalogStore struct {
	bucket Bucket
	key    string
}

func NewCatalogStore(b Bucket, prefix string) *CatalogStore {
	key := catalogObject
	if p := normalizeObjectKey(prefix); p != "" {
		key = path.Join(p, key)
	}
	return &CatalogStore{bucket: b, key: key}
}

func (s *CatalogStore) Key() string { return s.key }

// Load returns the stored routes. ok is false when nothing was stored yet.
func (s *CatalogStore) Load(ctx context.Context) (rs []routes.Route, ok bool, err error) {
	b, err := s.bucket.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	rs, err = routes.Decode(b)
	if err != nil {
		return nil, false, err
	}
	return rs, true, nil
}

func (s *CatalogStore) Save(ctx context.Context, rs []routes.Route) error {
	b, err := routes.Encode(rs)
	if err != nil {
		return err
	}
	return PutBytes(ctx, s.bucket, s.key, b, "application/json")
}
