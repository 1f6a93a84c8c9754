package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"vaultfs/pkg/logging"
	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
// 只缓存 "这个 Key 存在" 这一事实，不缓存数据本身
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client // Redis 客户端
	ttl     time.Duration // 缓存过期时间 (例如 24h)
	prefix  string        // 每个仓库一个命名空间
}

type Config struct {
	RedisURL  string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL       time.Duration // 过期时间
	Namespace string        // 一般是仓库的 Canonical 位置
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		prefix:  "vfs:" + cfg.Namespace + ":",
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(key types.StoreKey) string {
	return s.prefix + string(key)
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, key types.StoreKey) (bool, error) {
	ck := s.cacheKey(key)

	// 1. 查 Redis
	val, err := s.client.Exists(ctx, ck).Result()
	if err != nil {
		// 缓存故障降级：退化为无缓存模式
		logging.Warn("redis exists failed, falling back to backend",
			logging.String("key", string(key)), logging.Err(err))
	} else if val > 0 {
		return true, nil
	}

	// 2. 缓存未命中，查底层存储
	found, err := s.backend.Has(ctx, key)
	if err != nil {
		return false, err
	}

	// 3. 缓存回填
	if found {
		// 异步写入 Redis，不阻塞主流程
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, ck, "1", s.ttl)
		}()
	}
	return found, nil
}

// Put 总是穿透写入底层存储：同一个 Key (HEAD / super block) 可能被覆盖
func (s *CachedStore) Put(ctx context.Context, key types.StoreKey, data []byte) error {
	if err := s.backend.Put(ctx, key, data); err != nil {
		return err
	}

	// 只有底层写成功了，才写 Redis；Set 失败不影响主流程
	if err := s.client.Set(ctx, s.cacheKey(key), "1", s.ttl).Err(); err != nil {
		logging.Debug("redis set failed", logging.String("key", string(key)), logging.Err(err))
	}
	return nil
}

// Get 透传，不缓存 Blob 数据
func (s *CachedStore) Get(ctx context.Context, key types.StoreKey) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete 先删缓存再删底层，避免缓存说 "存在" 而底层已经没了
func (s *CachedStore) Delete(ctx context.Context, key types.StoreKey) error {
	if err := s.client.Del(ctx, s.cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return s.backend.Delete(ctx, key)
}

// Destroy 清掉这个命名空间下的全部缓存 Key，然后销毁底层存储
func (s *CachedStore) Destroy(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 256).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 256 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del failed: %w", err)
		}
	}
	return s.backend.Destroy(ctx)
}

func (s *CachedStore) Close() error {
	err := s.client.Close()
	if berr := s.backend.Close(); berr != nil {
		return berr
	}
	return err
}
