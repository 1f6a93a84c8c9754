// Package volume is the reference storage engine behind package vfs.
//
// A volume is a content-addressed object DAG (chunks, contents, inodes,
// trees, commits) sealed by package objstore on top of any storage.Store.
// The whole namespace is kept in memory as a copy-on-write tree; every
// mutation persists the changed nodes, writes a commit and only then swaps
// HEAD, so a failed operation leaves the previous state untouched.
package volume

import (
	"context"
	"errors"
	"sync"
	"time"

	"vaultfs/pkg/config"
	"vaultfs/pkg/core"
	"vaultfs/pkg/crypto"
	"vaultfs/pkg/engine"
	"vaultfs/pkg/exporter"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/ingester"
	"vaultfs/pkg/logging"
	"vaultfs/pkg/namespace"
	"vaultfs/pkg/objstore"
	"vaultfs/pkg/refs"
	"vaultfs/pkg/storage"
	"vaultfs/pkg/storage/backend"
	"vaultfs/pkg/types"
)

// Engine 实现 engine.Engine
type Engine struct {
	concurrency int
}

// New 创建引擎；并发上传上限来自配置 storage.upload_concurrency
func New() *Engine {
	return &Engine{concurrency: config.UploadConcurrency()}
}

var _ engine.Engine = (*Engine)(nil)

func openStore(ctx context.Context, uri string) (storage.Location, storage.Store, error) {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return storage.Location{}, nil, err
	}
	store, err := backend.Open(ctx, loc)
	if err != nil {
		return storage.Location{}, nil, err
	}
	return loc, store, nil
}

// Exists 检查位置上是否有仓库
func (e *Engine) Exists(ctx context.Context, uri string) (bool, error) {
	_, store, err := openStore(ctx, uri)
	if err != nil {
		return false, err
	}
	defer store.Close()
	return superExists(ctx, store)
}

// RepairSuperBlock 用完好的 super block 覆盖损坏的那一份
func (e *Engine) RepairSuperBlock(ctx context.Context, uri, pwd string) error {
	loc, store, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer store.Close()
	if isLocked(loc.Canonical()) {
		return fserr.New(fserr.CodeRepoOpened, "%s is opened", loc.Canonical())
	}
	if err := repairSuper(ctx, store, pwd); err != nil {
		return err
	}
	logging.Info("super block repaired", logging.String("uri", loc.Canonical()))
	return nil
}

// Destroy 删除整个仓库；仓库打开时不允许
func (e *Engine) Destroy(ctx context.Context, uri string) error {
	loc, store, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer store.Close()
	if isLocked(loc.Canonical()) {
		return fserr.New(fserr.CodeRepoOpened, "%s is opened", loc.Canonical())
	}
	if err := store.Destroy(ctx); err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "destroy %s", loc.Canonical())
	}
	logging.Info("repo destroyed", logging.String("uri", loc.Canonical()))
	return nil
}

// Open 打开或创建仓库
func (e *Engine) Open(ctx context.Context, uri, pwd string, cfg engine.Config) (engine.Volume, error) {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	if cfg.CreateNew {
		cfg.Create = true
	}

	// 1. 进程内排他锁；Force 跳过
	lockKey := ""
	if !cfg.Force {
		lockKey = loc.Canonical()
		if err := acquireLock(lockKey); err != nil {
			return nil, err
		}
	}

	v, err := e.open(ctx, loc, pwd, cfg)
	if err != nil {
		if lockKey != "" {
			releaseLock(lockKey)
		}
		return nil, err
	}
	v.lockKey = lockKey
	logging.Info("repo opened",
		logging.String("uri", loc.Canonical()),
		logging.Bool("read_only", cfg.ReadOnly),
		logging.Bool("force", cfg.Force))
	return v, nil
}

func (e *Engine) open(ctx context.Context, loc storage.Location, pwd string, cfg engine.Config) (*Volume, error) {
	store, err := backend.Open(ctx, loc)
	if err != nil {
		return nil, err
	}

	exists, err := superExists(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	var v *Volume
	switch {
	case exists && cfg.CreateNew:
		err = fserr.New(fserr.CodeRepoExists, "%s already exists", loc.Canonical())
	case !exists && !cfg.Create:
		err = fserr.New(fserr.CodeNotFound, "no repo at %s", loc.Canonical())
	case !exists:
		v, err = e.create(ctx, store, pwd, cfg)
	default:
		v, err = e.load(ctx, store, pwd)
	}
	if err != nil {
		store.Close()
		return nil, err
	}
	v.uri = loc.Raw
	v.readOnly = cfg.ReadOnly
	return v, nil
}

func (e *Engine) newVolume(store storage.Store, body *superBody, master []byte) (*Volume, error) {
	keys, err := crypto.DeriveKeySet(master)
	if err != nil {
		return nil, err
	}
	objs, err := objstore.New(store, body.cipher(), keys, body.Compress)
	if err != nil {
		return nil, err
	}
	return &Volume{
		store:   store,
		objs:    objs,
		ing:     ingester.NewIngester(objs, e.concurrency),
		exp:     exporter.NewExporter(objs),
		builder: namespace.NewBuilder(objs),
		refs:    refs.NewManager(objs),
		super:   body,
	}, nil
}

// create 初始化一个新仓库：super block + 空根目录的第一次提交
func (e *Engine) create(ctx context.Context, store storage.Store, pwd string, cfg engine.Config) (*Volume, error) {
	body, master, err := newSuper(pwd, cfg)
	if err != nil {
		return nil, err
	}
	v, err := e.newVolume(store, body, master)
	if err != nil {
		return nil, err
	}
	if err := v.prepareEmpty(ctx); err != nil {
		return nil, err
	}
	// 之前创建失败可能留下了 HEAD，从它的版本号继续
	_, ver, err := v.refs.GetHead(ctx)
	if err != nil && !errors.Is(err, refs.ErrNoHead) {
		return nil, fserr.Wrap(fserr.CodeIo, err, "read HEAD")
	}
	v.headVer = ver

	v.mu.Lock()
	err = v.commit(ctx, namespace.NewDir(time.Now().UnixNano()), "init")
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// super block 最后写：半途失败的仓库不会被当成已存在
	if err := writeSuper(ctx, store, body); err != nil {
		return nil, err
	}
	return v, nil
}

// load 打开已有仓库：解出主密钥，从 HEAD 还原目录树
func (e *Engine) load(ctx context.Context, store storage.Store, pwd string) (*Volume, error) {
	body, master, err := openSuper(ctx, store, pwd)
	if err != nil {
		return nil, err
	}
	v, err := e.newVolume(store, body, master)
	if err != nil {
		return nil, err
	}
	if err := v.prepareEmpty(ctx); err != nil {
		return nil, err
	}

	head, ver, err := v.refs.GetHead(ctx)
	if errors.Is(err, refs.ErrNoHead) {
		return nil, fserr.New(fserr.CodeInvalidSuperBlk, "repo has no HEAD")
	}
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeIo, err, "read HEAD")
	}
	data, err := v.objs.GetObject(ctx, head)
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeIo, err, "read commit %s", head.Short())
	}
	commit, err := core.DecodeCommit(data)
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeDecode, err, "decode commit %s", head.Short())
	}
	root, err := namespace.Load(ctx, v.objs, commit.TreeCid.Hash)
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeDecode, err, "load namespace")
	}

	v.root = root
	v.head = head
	v.headVer = ver
	v.seq = commit.Seq
	return v, nil
}

// Volume 实现 engine.Volume
type Volume struct {
	uri      string
	lockKey  string // Force 打开时为空
	readOnly bool

	store   storage.Store
	objs    *objstore.Store
	ing     *ingester.Ingester
	exp     *exporter.Exporter
	builder *namespace.Builder
	refs    *refs.Manager

	// 空内容对象，每个新文件的第 1 个版本都指向它
	empty *core.Content

	mu      sync.RWMutex
	super   *superBody
	root    *namespace.Node
	head    types.Hash
	headVer int64
	seq     uint64
	closed  bool

	handles arena
}

var _ engine.Volume = (*Volume)(nil)

func (v *Volume) prepareEmpty(ctx context.Context) error {
	content, err := v.ing.Ingest(ctx, nil, false)
	if err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "store empty content")
	}
	v.empty = content
	return nil
}

func (v *Volume) Info() engine.RepoInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.super.info(v.uri, v.readOnly)
}

// ResetPassword 验证旧口令后用新口令重新包装主密钥
func (v *Volume) ResetPassword(ctx context.Context, oldPwd, newPwd string, ops, mem engine.Cost) error {
	if v.readOnly {
		return fserr.New(fserr.CodeReadOnly, "cannot reset password of a read-only repo")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fserr.ErrRepoClosed
	}

	master, err := v.super.unwrap(oldPwd)
	if err != nil {
		return err
	}
	body := *v.super
	if err := body.wrap(newPwd, ops, mem, master); err != nil {
		return err
	}
	if err := writeSuper(ctx, v.store, &body); err != nil {
		return err
	}
	v.super = &body
	logging.Info("password reset", logging.String("uri", v.uri))
	return nil
}

// Close 释放全部句柄、存储和仓库锁。可以重复调用
func (v *Volume) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	n := v.handles.releaseAll()
	v.mu.Unlock()

	if n > 0 {
		logging.Debug("released open handles on close", logging.Int("count", n))
	}
	err := v.store.Close()
	if v.lockKey != "" {
		releaseLock(v.lockKey)
	}
	logging.Info("repo closed", logging.String("uri", v.uri))
	if err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "close storage")
	}
	return nil
}

// commit 持久化新的根并移动 HEAD。调用方持有写锁
// 任何一步失败都保留旧的根
func (v *Volume) commit(ctx context.Context, newRoot *namespace.Node, msg string) error {
	rootID, err := v.builder.Build(ctx, newRoot)
	if err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "persist namespace")
	}

	var parents []types.Hash
	if v.head != "" {
		parents = []types.Hash{v.head}
	}
	c, err := core.NewCommit(rootID, parents, v.seq+1, msg)
	if err != nil {
		return fserr.Wrap(fserr.CodeEncode, err, "create commit")
	}
	if err := v.objs.PutObject(ctx, c); err != nil {
		return err
	}

	if err := v.refs.UpdateHead(ctx, c.ID(), v.headVer); err != nil {
		if errors.Is(err, refs.ErrConcurrentUpdate) {
			return fserr.Wrap(fserr.CodeInUse, err, "repo was modified by another handle")
		}
		return fserr.Wrap(fserr.CodeIo, err, "update HEAD")
	}

	v.root = newRoot
	v.head = c.ID()
	v.headVer++
	v.seq++
	logging.Debug("commit",
		logging.Uint64("seq", v.seq),
		logging.String("commit", c.ID().Short()),
		logging.String("msg", msg))
	return nil
}

// mutate 在写锁下基于当前根计算新根并提交；fn 返回 nil 或原根表示没有变化
func (v *Volume) mutate(ctx context.Context, msg string, fn func(root *namespace.Node, now int64) (*namespace.Node, error)) error {
	if v.readOnly {
		return fserr.New(fserr.CodeReadOnly, "repo is opened read-only")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fserr.ErrRepoClosed
	}

	newRoot, err := fn(v.root, time.Now().UnixNano())
	if err != nil {
		return err
	}
	if newRoot == nil || newRoot == v.root {
		return nil
	}
	return v.commit(ctx, newRoot, msg)
}

// view 在读锁下访问当前根
func (v *Volume) view(fn func(root *namespace.Node) error) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return fserr.ErrRepoClosed
	}
	return fn(v.root)
}

func nodeMetadata(n *namespace.Node) engine.Metadata {
	m := engine.Metadata{
		FileType:   engine.FileTypeFile,
		CreatedAt:  time.Unix(0, n.CreatedAt()),
		ModifiedAt: time.Unix(0, n.ModifiedAt()),
	}
	if n.IsDir() {
		m.FileType = engine.FileTypeDir
		return m
	}
	st := n.File()
	m.CurrVersion = st.CurrVersion
	if latest, ok := st.Latest(); ok {
		m.ContentLen = latest.Len
	}
	return m
}

func fileHistory(st namespace.FileState) []engine.Version {
	out := make([]engine.Version, 0, len(st.Versions))
	for _, e := range st.Versions {
		out = append(out, engine.Version{
			Num:        e.Num,
			ContentLen: e.Len,
			CreatedAt:  time.Unix(0, e.CreatedAt),
		})
	}
	return out
}
