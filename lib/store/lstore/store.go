package lstore

import (
	"github.com/ValentinKolb/kvd/lib/db"
	"github.com/ValentinKolb/kvd/lib/store"
)

type storeImpl struct {
	db db.KVDB
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using the database created by factory directly.
func NewLocalStore(factory store.DBFactory) (store.IStore, error) {
	database, err := factory()
	if err != nil {
		return nil, err
	}
	return &storeImpl{
		db: database,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) ([]byte, error) {
	val, err := s.db.Get(key)
	return val, store.FromDBError(err)
}

func (s *storeImpl) Exists(key string) (bool, error) {
	return s.db.Exists(key), nil
}

func (s *storeImpl) Info(key string) (db.Metadata, error) {
	meta, err := s.db.Info(key)
	return meta, store.FromDBError(err)
}

func (s *storeImpl) Create(key string, value []byte) error {
	return store.FromDBError(s.db.Create(key, value))
}

func (s *storeImpl) Update(key string, value []byte) error {
	return store.FromDBError(s.db.Update(key, value))
}

func (s *storeImpl) Delete(key string) error {
	return store.FromDBError(s.db.Delete(key))
}

func (s *storeImpl) DeletePrefix(prefix string) (int, error) {
	count, err := s.db.DeletePrefix(prefix)
	return count, store.FromDBError(err)
}

func (s *storeImpl) BatchSet(pairs []db.Pair) (int, error) {
	return s.db.BatchSet(pairs), nil
}

func (s *storeImpl) List(prefix string, limit int) ([]string, error) {
	return s.db.List(prefix, limit), nil
}

func (s *storeImpl) Search(pattern string) ([][]byte, error) {
	values, err := s.db.Search(pattern)
	return values, store.FromDBError(err)
}

func (s *storeImpl) Compact() error {
	return store.FromDBError(s.db.Compact())
}

func (s *storeImpl) Backup() (string, error) {
	path, err := s.db.Backup()
	return path, store.FromDBError(err)
}

func (s *storeImpl) Stats() (db.Stats, error) {
	return s.db.Stats(), nil
}

func (s *storeImpl) Close() error {
	return store.FromDBError(s.db.Close())
}
