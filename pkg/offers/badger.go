package offers

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/util"
)

// BadgerStore is a gokv.Store kept in a Badger database. An empty path
// opens an in-memory database.
type BadgerStore struct {
	db    *badger.DB
	codec encoding.Codec
}

func NewBadgerStore(path string, codec encoding.Codec) (*BadgerStore, error) {
	if codec == nil {
		codec = encoding.JSON
	}
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, codec: codec}, nil
}

func (b *BadgerStore) Set(k string, v interface{}) error {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := b.codec.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(k), data)
	})
}

func (b *BadgerStore) Get(k string, v interface{}) (found bool, err error) {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return false, err
	}
	var data []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(k))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, b.codec.Unmarshal(data, v)
}

func (b *BadgerStore) Delete(k string) error {
	if err := util.CheckKey(k); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(k))
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
