package crypto

import (
	"crypto/rand"
	"fmt"
	"strings"

	"vaultfs/pkg/fserr"

	"golang.org/x/crypto/argon2"
)

const (
	KeySize  = 32 // 256 bits
	SaltSize = 16

	argonThreads = 4
)

// Cost 是 Argon2id 的代价档位，OpsLimit 和 MemLimit 共用同一组取值
type Cost int

const (
	CostInteractive Cost = iota
	CostModerate
	CostSensitive
)

func (c Cost) String() string {
	switch c {
	case CostInteractive:
		return "interactive"
	case CostModerate:
		return "moderate"
	case CostSensitive:
		return "sensitive"
	}
	return fmt.Sprintf("cost(%d)", int(c))
}

func (c Cost) Valid() bool { return c >= CostInteractive && c <= CostSensitive }

// ParseCost 解析配置里的档位名
func ParseCost(name string) (Cost, error) {
	switch strings.ToLower(name) {
	case "interactive", "":
		return CostInteractive, nil
	case "moderate":
		return CostModerate, nil
	case "sensitive":
		return CostSensitive, nil
	}
	return 0, fserr.New(fserr.CodeInvalidCost, "unknown cost %q", name)
}

// 与 libsodium 的 *_INTERACTIVE / *_MODERATE / *_SENSITIVE 对齐
var (
	opsTable = [...]uint32{2, 3, 4}
	memTable = [...]uint32{64 * 1024, 256 * 1024, 1024 * 1024} // KiB
)

// DeriveKey 用 Argon2id 从口令派生 32 字节密钥
func DeriveKey(password string, salt []byte, ops, mem Cost) ([]byte, error) {
	if !ops.Valid() || !mem.Valid() {
		return nil, fserr.New(fserr.CodeInvalidCost, "invalid cost ops=%d mem=%d", ops, mem)
	}
	if len(salt) != SaltSize {
		return nil, fserr.New(fserr.CodeHashing, "salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return argon2.IDKey([]byte(password), salt, opsTable[ops], memTable[mem], argonThreads, KeySize), nil
}

// RandomBytes 读取 n 个随机字节
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fserr.Wrap(fserr.CodeInitCrypto, err, "crypto/rand failed")
	}
	return b, nil
}
