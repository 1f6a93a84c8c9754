package vfs

import (
	"vaultfs/pkg/engine"
	"vaultfs/pkg/vpath"
)

// 值类型直接沿用 engine 包的定义，返回给调用方的都是副本
type (
	Path     = vpath.Path
	FileType = engine.FileType
	Metadata = engine.Metadata
	Version  = engine.Version
	DirEntry = engine.DirEntry
	RepoInfo = engine.RepoInfo
	Cost     = engine.Cost
	Cipher   = engine.Cipher
)

const (
	FileTypeFile = engine.FileTypeFile
	FileTypeDir  = engine.FileTypeDir

	CostInteractive = engine.CostInteractive
	CostModerate    = engine.CostModerate
	CostSensitive   = engine.CostSensitive

	CipherXChaCha = engine.CipherXChaCha
	CipherAES     = engine.CipherAES
)

// NewPath 校验并归一化一个绝对路径
func NewPath(s string) (Path, error) { return vpath.New(s) }

// Root 返回 "/"
func Root() Path { return vpath.Root() }

// checkPaths 拒绝零值路径
func checkPaths(paths ...Path) error {
	for _, p := range paths {
		if p.IsZero() {
			return errNoPath
		}
	}
	return nil
}
