package vfs

import (
	"context"

	"vaultfs/pkg/config"
	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
)

// RepoOpener 配置并打开仓库。默认值来自 pkg/config (repo.*)
//
//	repo, err := vfs.NewRepoOpener().Create(true).VersionLimit(4).Open("mem://demo", "pwd")
type RepoOpener struct {
	eng engine.Engine
	cfg engine.Config
	err error // 第一个无效参数，Open 时返回
}

func NewRepoOpener() *RepoOpener {
	o := &RepoOpener{}
	d := config.RepoDefaults()

	ops, err := engine.ParseCost(d.OpsLimit)
	o.keep(err)
	mem, err := engine.ParseCost(d.MemLimit)
	o.keep(err)
	c, err := engine.ParseCipher(d.Cipher)
	o.keep(err)

	o.cfg = engine.Config{
		OpsLimit:   ops,
		MemLimit:   mem,
		Cipher:     c,
		Compress:   d.Compress,
		DedupChunk: d.DedupChunk,
	}
	o.VersionLimit(clampLimit(d.VersionLimit))
	return o
}

func clampLimit(n int) uint8 {
	if n < 0 || n > 255 {
		return 0
	}
	return uint8(n)
}

func (o *RepoOpener) keep(err error) {
	if o.err == nil && err != nil {
		o.err = err
	}
}

// WithEngine 替换存储引擎，默认是 DefaultEngine()
func (o *RepoOpener) WithEngine(e engine.Engine) *RepoOpener {
	o.eng = e
	return o
}

func (o *RepoOpener) OpsLimit(c Cost) *RepoOpener {
	if !c.Valid() {
		o.keep(fserr.New(fserr.CodeInvalidCost, "invalid ops limit %d", c))
	}
	o.cfg.OpsLimit = c
	return o
}

func (o *RepoOpener) MemLimit(c Cost) *RepoOpener {
	if !c.Valid() {
		o.keep(fserr.New(fserr.CodeInvalidCost, "invalid mem limit %d", c))
	}
	o.cfg.MemLimit = c
	return o
}

func (o *RepoOpener) Cipher(c Cipher) *RepoOpener {
	if c != CipherXChaCha && c != CipherAES {
		o.keep(fserr.New(fserr.CodeInvalidCipher, "invalid cipher %d", c))
	}
	o.cfg.Cipher = c
	return o
}

func (o *RepoOpener) Create(b bool) *RepoOpener {
	o.cfg.Create = b
	return o
}

// CreateNew 要求仓库不存在，隐含 Create
func (o *RepoOpener) CreateNew(b bool) *RepoOpener {
	o.cfg.CreateNew = b
	if b {
		o.cfg.Create = true
	}
	return o
}

func (o *RepoOpener) Compress(b bool) *RepoOpener {
	o.cfg.Compress = b
	return o
}

// VersionLimit 是新文件默认保留的版本数，1..255
func (o *RepoOpener) VersionLimit(n uint8) *RepoOpener {
	if n == 0 {
		o.keep(fserr.New(fserr.CodeInvalidArgument, "version limit must be in 1..255"))
	}
	o.cfg.VersionLimit = n
	return o
}

func (o *RepoOpener) DedupChunk(b bool) *RepoOpener {
	o.cfg.DedupChunk = b
	return o
}

func (o *RepoOpener) ReadOnly(b bool) *RepoOpener {
	o.cfg.ReadOnly = b
	return o
}

// Force 跳过进程内的排他锁。同时打开同一个仓库的后果由调用方承担
func (o *RepoOpener) Force(b bool) *RepoOpener {
	o.cfg.Force = b
	return o
}

// Open 打开 (或按配置创建) uri 处的仓库
func (o *RepoOpener) Open(uri, pwd string) (*Repo, error) {
	if err := checkInit(); err != nil {
		return nil, err
	}
	if o.err != nil {
		return nil, o.err
	}
	eng := o.eng
	if eng == nil {
		eng = DefaultEngine()
	}
	vol, err := eng.Open(context.Background(), uri, pwd, o.cfg)
	if err != nil {
		return nil, err
	}
	return newRepo(vol), nil
}

// RepoExists 检查 uri 处是否已经有仓库
func RepoExists(uri string) (bool, error) {
	if err := checkInit(); err != nil {
		return false, err
	}
	return DefaultEngine().Exists(context.Background(), uri)
}

// RepairSuperBlock 用完好的备份修复损坏的 super block。仓库不能处于打开状态
func RepairSuperBlock(uri, pwd string) error {
	if err := checkInit(); err != nil {
		return err
	}
	return DefaultEngine().RepairSuperBlock(context.Background(), uri, pwd)
}

// DestroyRepo 永久删除仓库的全部数据。仓库不能处于打开状态
func DestroyRepo(uri string) error {
	if err := checkInit(); err != nil {
		return err
	}
	return DefaultEngine().Destroy(context.Background(), uri)
}
