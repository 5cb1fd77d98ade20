package offers

import (
	"errors"
	"io/fs"
	"os"

	"github.com/philippgille/gokv/encoding"
	"github.com/philippgille/gokv/util"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBStore is a gokv.Store kept in a local LevelDB directory.
type LevelDBStore struct {
	db       *leveldb.DB
	syncOpts *opt.WriteOptions
	codec    encoding.Codec
}

func NewLevelDBStore(path string, codec encoding.Codec) (*LevelDBStore, error) {
	if err := os.MkdirAll(path, fs.ModePerm); err != nil {
		return nil, err
	}
	if codec == nil {
		codec = encoding.JSON
	}
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfMissing: false})
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{
		db:       db,
		syncOpts: &opt.WriteOptions{Sync: true},
		codec:    codec,
	}, nil
}

func (l *LevelDBStore) Set(k string, v interface{}) error {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := l.codec.Marshal(v)
	if err != nil {
		return err
	}
	return l.db.Put([]byte(k), data, l.syncOpts)
}

func (l *LevelDBStore) Get(k string, v interface{}) (found bool, err error) {
	if err := util.CheckKeyAndValue(k, v); err != nil {
		return false, err
	}
	data, err := l.db.Get([]byte(k), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, l.codec.Unmarshal(data, v)
}

func (l *LevelDBStore) Delete(k string) error {
	if err := util.CheckKey(k); err != nil {
		return err
	}
	return l.db.Delete([]byte(k), l.syncOpts)
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}
