// Package vfs is the public face of VaultFS: an encrypted, versioned file
// system inside a single repository location.
//
// Call Init once, open a Repo with a RepoOpener, then work with paths and
// File handles. Every handle releases its engine resource on Close; a
// forgotten handle is released when it is garbage collected.
package vfs

import (
	"sync"
	"sync/atomic"

	"vaultfs/pkg/config"
	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/logging"
	"vaultfs/pkg/volume"
)

var (
	initOnce sync.Once
	initErr  error
	ready    atomic.Bool
)

// Init 初始化运行环境 (配置 + 日志)。level 取 error / warn / info / debug / trace，
// 为空时使用配置项 log.level。配置文件按 ./config.yaml、./.vaultfs、~/.vaultfs 的顺序查找
// 可以重复调用：之后的调用只调整日志级别
func Init(level string) error { return InitWithConfig("", level) }

// InitWithConfig 同 Init，但显式指定配置文件
func InitWithConfig(cfgFile, level string) error {
	if level != "" {
		if _, ok := logging.ParseLevel(level); !ok {
			return fserr.New(fserr.CodeInvalidArgument, "unknown log level %q", level)
		}
	}

	initOnce.Do(func() {
		if err := config.Load(cfgFile); err != nil {
			initErr = fserr.Wrap(fserr.CodeInvalidArgument, err, "load config")
			return
		}
		lvl := level
		if lvl == "" {
			lvl = config.LogLevel()
		}
		if err := logging.Init(logging.Config{Level: lvl, Format: config.LogFormat()}); err != nil {
			initErr = fserr.Wrap(fserr.CodeInitCrypto, err, "init logging")
			return
		}
		ready.Store(true)
		logging.Info("environment initialized", logging.String("version", VersionString()))
	})
	if initErr != nil {
		return initErr
	}
	if level != "" {
		logging.SetLevel(level)
	}
	return nil
}

func checkInit() error {
	if !ready.Load() {
		return fserr.New(fserr.CodeInitCrypto, "environment not initialized")
	}
	return nil
}

// VersionString 返回 "VaultFS v<major>.<minor>.<patch>"
func VersionString() string { return engine.VersionString() }

var defaultEngine = sync.OnceValue(func() engine.Engine { return volume.New() })

// DefaultEngine 返回内置的存储引擎
func DefaultEngine() engine.Engine { return defaultEngine() }
