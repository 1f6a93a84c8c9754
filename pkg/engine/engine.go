// Package engine defines the capability interface between the file system
// core (package vfs) and a storage engine.
//
// The core resolves paths, validates arguments and owns handles; everything
// touching cryptography, encoding or storage lives behind Engine and Volume.
package engine

import (
	"context"
	"fmt"
	"time"

	"vaultfs/pkg/crypto"
	"vaultfs/pkg/vpath"
)

// Product 和版本号
const (
	ProductName = "VaultFS"
	Major       = 0
	Minor       = 1
	Patch       = 0
)

// VersionString 返回 "VaultFS v0.1.0"
func VersionString() string {
	return fmt.Sprintf("%s v%d.%d.%d", ProductName, Major, Minor, Patch)
}

// Cost 和 Cipher 直接复用 crypto 包的取值，super block 里持久化的也是这些值
type (
	Cost   = crypto.Cost
	Cipher = crypto.Cipher
)

const (
	CostInteractive = crypto.CostInteractive
	CostModerate    = crypto.CostModerate
	CostSensitive   = crypto.CostSensitive

	CipherXChaCha = crypto.CipherXChaCha
	CipherAES     = crypto.CipherAES
)

var (
	ParseCost   = crypto.ParseCost
	ParseCipher = crypto.ParseCipher
)

// FileType 区分文件和目录
type FileType int

const (
	FileTypeFile FileType = iota
	FileTypeDir
)

func (t FileType) String() string {
	if t == FileTypeDir {
		return "dir"
	}
	return "file"
}

// Config 是打开 / 创建仓库的参数
type Config struct {
	OpsLimit     Cost
	MemLimit     Cost
	Cipher       Cipher
	Create       bool
	CreateNew    bool
	Compress     bool
	VersionLimit uint8 // 0 表示 1
	DedupChunk   bool
	ReadOnly     bool
	Force        bool
}

// FileOptions 是打开文件的访问模式
type FileOptions struct {
	Read         bool
	Write        bool
	Append       bool
	Truncate     bool
	Create       bool
	CreateNew    bool
	VersionLimit uint8 // 0 表示沿用文件 (或仓库) 的设置
	DedupChunk   bool
}

// Normalize 补全隐含的标志位
func (o FileOptions) Normalize() FileOptions {
	if o.CreateNew {
		o.Create = true
	}
	if o.Append || o.Truncate || o.Create {
		o.Write = true
	}
	return o
}

// Metadata 是文件或目录的元数据快照
type Metadata struct {
	FileType    FileType
	ContentLen  int64
	CurrVersion uint64
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

func (m Metadata) IsFile() bool { return m.FileType == FileTypeFile }
func (m Metadata) IsDir() bool  { return m.FileType == FileTypeDir }

// Version 是一个保留下来的文件版本
type Version struct {
	Num        uint64
	ContentLen int64
	CreatedAt  time.Time
}

// DirEntry 是目录中的一项
type DirEntry struct {
	Path     vpath.Path
	FileName string
	Metadata Metadata
}

// RepoInfo 是仓库的静态信息
type RepoInfo struct {
	VolumeID     [32]byte
	Version      string
	URI          string
	OpsLimit     Cost
	MemLimit     Cost
	Cipher       Cipher
	Compress     bool
	VersionLimit uint8
	DedupChunk   bool
	IsReadOnly   bool
	CreatedAt    time.Time
}

// Handle 是引擎内部句柄表的索引。Gen 用于识别已经释放过的旧句柄
type Handle struct {
	Index uint32
	Gen   uint32
}

func (h Handle) IsZero() bool { return h.Gen == 0 }

func (h Handle) String() string { return fmt.Sprintf("handle(%d#%d)", h.Index, h.Gen) }

// MaxFileLen 是单个文件版本的最大长度。写入和 SetLen 超过它时返回 InvalidArgument；
// 提交前整个版本都在内存里
const MaxFileLen int64 = 1 << 32

// Seek whence 取值，与 io.SeekStart 等一致
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// Engine 负责打开卷和仓库级别的管理操作
type Engine interface {
	Open(ctx context.Context, uri, pwd string, cfg Config) (Volume, error)
	Exists(ctx context.Context, uri string) (bool, error)
	RepairSuperBlock(ctx context.Context, uri, pwd string) error
	Destroy(ctx context.Context, uri string) error
}

// Volume 是一个已经打开的仓库。所有方法都可以并发调用
type Volume interface {
	Info() RepoInfo
	ResetPassword(ctx context.Context, oldPwd, newPwd string, ops, mem Cost) error
	Close() error

	// 查询
	PathExists(ctx context.Context, p vpath.Path) (bool, error)
	IsFile(ctx context.Context, p vpath.Path) (bool, error)
	IsDir(ctx context.Context, p vpath.Path) (bool, error)
	Metadata(ctx context.Context, p vpath.Path) (Metadata, error)
	History(ctx context.Context, p vpath.Path) ([]Version, error)

	// 目录树
	CreateDir(ctx context.Context, p vpath.Path) error
	CreateDirAll(ctx context.Context, p vpath.Path) error
	ReadDir(ctx context.Context, p vpath.Path) ([]DirEntry, error)
	RemoveFile(ctx context.Context, p vpath.Path) error
	RemoveDir(ctx context.Context, p vpath.Path) error
	RemoveDirAll(ctx context.Context, p vpath.Path) error
	Rename(ctx context.Context, from, to vpath.Path) error
	Copy(ctx context.Context, from, to vpath.Path) error
	CopyDirAll(ctx context.Context, from, to vpath.Path) error

	// 文件句柄
	OpenFile(ctx context.Context, p vpath.Path, opts FileOptions) (Handle, error)
	OpenVersion(ctx context.Context, h Handle, num uint64) (Handle, error)
	Write(ctx context.Context, h Handle, p []byte) (int, error)
	Finish(ctx context.Context, h Handle) error
	SetLen(ctx context.Context, h Handle, n int64) error
	Read(ctx context.Context, h Handle, p []byte) (int, error)
	Seek(ctx context.Context, h Handle, off int64, whence int) (int64, error)
	FileMetadata(ctx context.Context, h Handle) (Metadata, error)
	FileHistory(ctx context.Context, h Handle) ([]Version, error)
	CurrVersion(ctx context.Context, h Handle) (uint64, error)

	// Release 释放句柄。对同一个句柄释放两次是程序错误，会 panic
	Release(h Handle)
}
