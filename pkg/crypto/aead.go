package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"vaultfs/pkg/fserr"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher selects the AEAD primitive. Values are persisted in the super block.
type Cipher int

const (
	CipherXChaCha Cipher = iota
	CipherAES
)

func (c Cipher) String() string {
	switch c {
	case CipherXChaCha:
		return "xchacha"
	case CipherAES:
		return "aes"
	}
	return fmt.Sprintf("cipher(%d)", int(c))
}

func ParseCipher(name string) (Cipher, error) {
	switch strings.ToLower(name) {
	case "xchacha", "xchacha20-poly1305":
		return CipherXChaCha, nil
	case "aes", "aes-256-gcm", "":
		return CipherAES, nil
	}
	return 0, fserr.New(fserr.CodeInvalidCipher, "unknown cipher %q", name)
}

// BlobVersion 是每个密文块的第一个字节，同时作为 AAD 的一部分参与认证
const BlobVersion byte = 0x01

func newAEAD(c Cipher, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fserr.New(fserr.CodeInitCrypto, "key must be %d bytes, got %d", KeySize, len(key))
	}
	switch c {
	case CipherXChaCha:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fserr.Wrap(fserr.CodeInitCrypto, err, "creating XChaCha20-Poly1305 cipher")
		}
		return aead, nil
	case CipherAES:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fserr.Wrap(fserr.CodeInitCrypto, err, "creating AES cipher")
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fserr.Wrap(fserr.CodeNoAesHardware, err, "creating AES-GCM")
		}
		return aead, nil
	}
	return nil, fserr.New(fserr.CodeInvalidCipher, "unsupported cipher %d", c)
}

// Sealer 对一段明文做认证加密
//
//	[Version: 1 byte] [Nonce: NonceSize bytes] [Ciphertext+Tag]
//
// identity (通常是存储 Key) 作为 AAD，防止密文块在存储里被互换
type Sealer struct {
	cipher Cipher
	aead   cipher.AEAD
}

func NewSealer(c Cipher, key []byte) (*Sealer, error) {
	aead, err := newAEAD(c, key)
	if err != nil {
		return nil, err
	}
	return &Sealer{cipher: c, aead: aead}, nil
}

func (s *Sealer) Cipher() Cipher { return s.cipher }

// Overhead 是每个密文块比明文多出的字节数
func (s *Sealer) Overhead() int { return 1 + s.aead.NonceSize() + s.aead.Overhead() }

func buildAAD(version byte, identity []byte) []byte {
	aad := make([]byte, 1+len(identity))
	aad[0] = version
	copy(aad[1:], identity)
	return aad
}

func (s *Sealer) Seal(plaintext, identity []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fserr.Wrap(fserr.CodeEncrypt, err, "generating random nonce")
	}

	out := make([]byte, 1+len(nonce), 1+len(nonce)+len(plaintext)+s.aead.Overhead())
	out[0] = BlobVersion
	copy(out[1:], nonce)
	return s.aead.Seal(out, nonce, plaintext, buildAAD(BlobVersion, identity)), nil
}

func (s *Sealer) Open(blob, identity []byte) ([]byte, error) {
	if len(blob) < s.Overhead() {
		return nil, fserr.New(fserr.CodeDecrypt, "blob is %d bytes, minimum is %d", len(blob), s.Overhead())
	}
	if blob[0] != BlobVersion {
		return nil, fserr.New(fserr.CodeWrongVersion, "blob version %d is not supported", blob[0])
	}
	nonce := blob[1 : 1+s.aead.NonceSize()]
	plaintext, err := s.aead.Open(nil, nonce, blob[1+len(nonce):], buildAAD(blob[0], identity))
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeDecrypt, err, "authentication failed (wrong key or tampered data)")
	}
	return plaintext, nil
}
