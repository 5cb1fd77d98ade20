package offers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/philippgille/gokv"
	"github.com/philippgille/gokv/encoding"

	"github.com/IceFireDB/IceFireDB-Gateway/pkg/config"
)

const (
	TypeMemory  = "memory"
	TypeRedis   = "redis"
	TypeLevelDB = "leveldb"
	TypeBadger  = "badger"
	TypeS3      = "s3"
)

const connectRetry = 30 * time.Second

func Codec(name string) (encoding.Codec, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return encoding.JSON, nil
	case "gob":
		return encoding.Gob, nil
	default:
		return nil, fmt.Errorf("unknown offers codec %q", name)
	}
}

// OpenBackend builds the persistence backend selected by cfg.Type.
func OpenBackend(ctx context.Context, cfg config.OffersS) (gokv.Store, error) {
	codec, err := Codec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Type) {
	case "", TypeMemory:
		return NewMemoryStore(codec), nil
	case TypeRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Timeout:      cfg.Redis.Timeout,
			ConnectRetry: connectRetry,
			Codec:        codec,
		})
	case TypeLevelDB:
		return NewLevelDBStore(cfg.Path, codec)
	case TypeBadger:
		return NewBadgerStore(cfg.Path, codec)
	case TypeS3:
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PathStyle: cfg.S3.PathStyle,
			Codec:     codec,
		})
	default:
		return nil, fmt.Errorf("unknown offers backend %q", cfg.Type)
	}
}
