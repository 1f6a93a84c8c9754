// Package backend turns a parsed storage.Location into a concrete Store.
package backend

import (
	"context"
	"net/url"
	"strings"

	"vaultfs/pkg/config"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/logging"
	"vaultfs/pkg/storage"
	"vaultfs/pkg/storage/cache"
	"vaultfs/pkg/storage/disk"
	"vaultfs/pkg/storage/s3"
	"vaultfs/pkg/storage/sqlstore"
)

// Open 根据 scheme 构造存储；带 cache 参数时外面再包一层 Redis
func Open(ctx context.Context, loc storage.Location) (storage.Store, error) {
	store, err := openBase(ctx, loc)
	if err != nil {
		return nil, err
	}

	cacheURL := loc.Params.Get("cache")
	if cacheURL == "" {
		return store, nil
	}

	cached, err := cache.NewCachedStore(store, cache.Config{
		RedisURL:  cacheURL,
		TTL:       config.CacheTTL(),
		Namespace: loc.Canonical(),
	})
	if err != nil {
		store.Close()
		return nil, fserr.Wrap(fserr.CodeNetwork, err, "cannot open cache for %s", loc.Canonical())
	}
	logging.Debug("existence cache enabled", logging.String("location", loc.Canonical()))
	return cached, nil
}

func openBase(ctx context.Context, loc storage.Location) (storage.Store, error) {
	switch loc.Scheme {
	case storage.SchemeMem:
		return disk.NewMemory(loc.Ident), nil

	case storage.SchemeFile:
		s, err := disk.NewAdapter(loc.Ident)
		if err != nil {
			return nil, fserr.Wrap(fserr.CodeIo, err, "cannot open %s", loc.Canonical())
		}
		return s, nil

	case storage.SchemeZbox:
		cfg := s3Config(loc)
		s, err := s3.NewAdapter(ctx, cfg)
		if err != nil {
			return nil, fserr.Wrap(fserr.CodeNetwork, err, "cannot open %s", loc.Canonical())
		}
		return s, nil

	case storage.SchemeSQLite:
		s, err := sqlstore.OpenSQLite(ctx, loc.Ident)
		if err != nil {
			return nil, fserr.Wrap(fserr.CodeIo, err, "cannot open %s", loc.Canonical())
		}
		return s, nil

	case storage.SchemePostgres:
		s, err := sqlstore.OpenPostgres(ctx, postgresDSN(loc))
		if err != nil {
			return nil, fserr.Wrap(fserr.CodeNetwork, err, "cannot open %s", loc.Canonical())
		}
		return s, nil
	}
	return nil, fserr.New(fserr.CodeInvalidUri, "unsupported storage %q", loc.Scheme)
}

// s3Config 把 zbox://access@bucket[/prefix] 和配置文件里的默认值合并
func s3Config(loc storage.Location) s3.Config {
	defaults := config.S3Defaults()
	access, rest, _ := strings.Cut(loc.Ident, "@")
	bucket, prefix, _ := strings.Cut(rest, "/")

	cfg := s3.Config{
		Endpoint:        defaults.Endpoint,
		Region:          defaults.Region,
		Bucket:          bucket,
		Prefix:          prefix,
		AccessKeyID:     access,
		SecretAccessKey: defaults.SecretKey,
	}
	if v := loc.Params.Get("endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v := loc.Params.Get("region"); v != "" {
		cfg.Region = v
	}
	return cfg
}

// postgresDSN 去掉我们自己的参数，其余原样交给驱动
func postgresDSN(loc storage.Location) string {
	params := url.Values{}
	for k, v := range loc.Params {
		if k == "cache" {
			continue
		}
		params[k] = v
	}
	dsn := loc.Canonical()
	if enc := params.Encode(); enc != "" {
		dsn += "?" + enc
	}
	return dsn
}
