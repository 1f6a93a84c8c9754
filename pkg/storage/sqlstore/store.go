package sqlstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Object 是一行 Key/Value
type Object struct {
	// Key 是主键：对象地址 (64 hex) 或者 "HEAD" / "super.0" 这类固定名字
	Key string `gorm:"column:obj_key;primaryKey;type:varchar(128)"`

	Data []byte `gorm:"not null"`

	UpdatedAt time.Time
}

// TableName 强制指定表名
func (Object) TableName() string {
	return "vaultfs_objects"
}

// Store 用一张 SQL 表实现 storage.Store (sqlite:// 和 postgres://)
type Store struct {
	conn *gorm.DB
}

// OpenSQLite 打开 (或创建) 一个 sqlite 数据库文件
// sqlite 同一时刻只允许一个写者，连接池收敛到 1 避免 SQLITE_BUSY
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	s, err := Open(ctx, sqlite.Open(path))
	if err != nil {
		return nil, err
	}
	sqlDB, err := s.conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return s, nil
}

// OpenPostgres 用标准 DSN 连接 PostgreSQL
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	return Open(ctx, postgres.Open(dsn))
}

// Open 初始化数据库连接并迁移表结构
func Open(ctx context.Context, dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层 sql.DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 验证连接是否存活
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := NewWithConn(db)
	if err := s.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// NewWithConn 允许使用现有的 GORM 连接 (单元测试)
func NewWithConn(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.conn.WithContext(ctx).AutoMigrate(&Object{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

// Put 用 UPSERT 覆盖写入，单条语句本身是原子的
func (s *Store) Put(ctx context.Context, key types.StoreKey, data []byte) error {
	obj := Object{Key: string(key), Data: data}
	err := s.conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "obj_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&obj).Error
	if err != nil {
		return fmt.Errorf("sql put failed: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key types.StoreKey) (io.ReadCloser, error) {
	var obj Object
	err := s.conn.WithContext(ctx).
		Where("obj_key = ?", string(key)).
		First(&obj).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sql get failed: %w", err)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

func (s *Store) Has(ctx context.Context, key types.StoreKey) (bool, error) {
	var count int64
	err := s.conn.WithContext(ctx).
		Model(&Object{}).
		Where("obj_key = ?", string(key)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("sql has failed: %w", err)
	}
	return count > 0, nil
}

func (s *Store) Delete(ctx context.Context, key types.StoreKey) error {
	err := s.conn.WithContext(ctx).
		Where("obj_key = ?", string(key)).
		Delete(&Object{}).Error
	if err != nil {
		return fmt.Errorf("sql delete failed: %w", err)
	}
	return nil
}

// Destroy 清空整张表
func (s *Store) Destroy(ctx context.Context) error {
	err := s.conn.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Object{}).Error
	if err != nil {
		return fmt.Errorf("sql destroy failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
