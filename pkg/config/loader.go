package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"vaultfs/pkg/logging"

	"github.com/spf13/viper"
)

// 当前生效的配置。Load 构造一个新的 viper 实例，整体替换旧的；
// getter 只读，不再修改 viper 的内部状态
var current atomic.Pointer[viper.Viper]

func get() *viper.Viper {
	if v := current.Load(); v != nil {
		return v
	}
	current.CompareAndSwap(nil, newViper())
	return current.Load()
}

// newViper 返回只带默认值和环境变量绑定的实例
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	return v
}

// Reset 丢弃已加载的配置文件，回到内置默认值 + 环境变量
func Reset() { current.Store(newViper()) }

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 默认值和环境变量 (VAULTFS_STORAGE_S3_SECRET_KEY 等)
	v := newViper()

	// 2. 配置搜索路径
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：当前目录 -> ./.vaultfs -> ~/.vaultfs
		v.AddConfigPath(".")
		v.AddConfigPath(".vaultfs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".vaultfs"))
		}
		v.SetConfigType("yaml")
		v.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error config file: %w", err)
		}
		// 没找到配置文件不算错，继续用默认值和环境变量
		logging.Debug("no config file found, using defaults/env vars")
	} else {
		logging.Info("using config file", logging.String("path", v.ConfigFileUsed()))
	}

	// 4. 整体替换
	current.Store(v)
	return nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("VAULTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper) {
	// 仓库默认值 (RepoOpener 未显式设置时使用)
	v.SetDefault("repo.ops_limit", "interactive")
	v.SetDefault("repo.mem_limit", "interactive")
	v.SetDefault("repo.cipher", "aes")
	v.SetDefault("repo.version_limit", 1)
	v.SetDefault("repo.dedup_chunk", false)
	v.SetDefault("repo.compress", false)

	// 存储默认值
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.cache.ttl", "24h")
	v.SetDefault("storage.upload_concurrency", 8)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}

// Repo 是打开仓库时的默认参数
type Repo struct {
	OpsLimit     string
	MemLimit     string
	Cipher       string
	VersionLimit int
	DedupChunk   bool
	Compress     bool
}

// S3 是 zbox:// 后端需要的、不适合放进 URI 的参数
type S3 struct {
	Region    string
	Endpoint  string
	SecretKey string
}

// RepoDefaults 返回仓库默认参数；即使从未调用 Load 也能得到内置默认值
// 所有 getter 都可以并发调用
func RepoDefaults() Repo {
	v := get()
	return Repo{
		OpsLimit:     v.GetString("repo.ops_limit"),
		MemLimit:     v.GetString("repo.mem_limit"),
		Cipher:       v.GetString("repo.cipher"),
		VersionLimit: v.GetInt("repo.version_limit"),
		DedupChunk:   v.GetBool("repo.dedup_chunk"),
		Compress:     v.GetBool("repo.compress"),
	}
}

func S3Defaults() S3 {
	v := get()
	return S3{
		Region:    v.GetString("storage.s3.region"),
		Endpoint:  v.GetString("storage.s3.endpoint"),
		SecretKey: v.GetString("storage.s3.secret_key"),
	}
}

func CacheTTL() time.Duration {
	return get().GetDuration("storage.cache.ttl")
}

func UploadConcurrency() int {
	v := get()
	if n := v.GetInt("storage.upload_concurrency"); n > 0 {
		return n
	}
	return 1
}

func LogLevel() string {
	return get().GetString("log.level")
}

func LogFormat() string {
	return get().GetString("log.format")
}
