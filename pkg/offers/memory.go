package offers

import (
	"context"
	"errors"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/util"
)

// MemoryStore is a gokv.Store kept in an in-process datastore. Nothing
// survives a restart.
type MemoryStore struct {
	ds    ds.Datastore
	codec encoding.Codec
}

func NewMemoryStore(codec encoding.Codec) *MemoryStore {
	if codec == nil {
		codec = encoding.JSON
	}
	return &MemoryStore{
		ds:    dssync.MutexWrap(ds.NewMapDatastore()),
		codec: codec,
	}
}

func (m *MemoryStore) Set(k string, v interface{}) error {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := m.codec.Marshal(v)
	if err != nil {
		return err
	}
	return m.ds.Put(context.Background(), ds.NewKey(k), data)
}

func (m *MemoryStore) Get(k string, v interface{}) (found bool, err error) {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return false, err
	}
	data, err := m.ds.Get(context.Background(), ds.NewKey(k))
	if errors.Is(err, ds.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, m.codec.Unmarshal(data, v)
}

func (m *MemoryStore) Delete(k string) error {
	if err := util.CheckKey(k); err != nil {
		return err
	}
	err := m.ds.Delete(context.Background(), ds.NewKey(k))
	if errors.Is(err, ds.ErrNotFound) {
		return nil
	}
	return err
}

func (m *MemoryStore) Close() error {
	return m.ds.Close()
}
