// Package cipher implements the fixed-block symmetric transform and
// key-prepared context described in spec §4.1: a process-wide registry of
// block ciphers (AES-128/192/256, Camellia-128/192/256, and the "none"
// sentinel), each producing immutable, freely shared encryption/decryption
// contexts that perform ECB transforms over whole blocks.
package cipher

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"

	"github.com/aead/camellia"
	"github.com/siodb/iomgr/internal/ioerr"
)

// Cipher describes one symmetric block cipher algorithm (spec §4.1).
type Cipher interface {
	CipherID() string
	BlockSizeBits() int
	KeySizeBits() int
	CreateEncryptionContext(key []byte) (Context, error)
	CreateDecryptionContext(key []byte) (Context, error)
}

// Context is an immutable, key-bound cipher context. Transform is purely
// CPU-bound, non-blocking, and never fails (spec §4.1).
type Context interface {
	// Transform ECB-transforms exactly blockCount*blockSize bytes from
	// input into output. input == output is permitted (in-place).
	Transform(input []byte, blockCount int, output []byte)
	BlockSize() int
}

// registry is the process-wide g_ciphers map (spec §9): initialized once,
// immutable thereafter, so lookups never need a lock.
var registry = map[string]Cipher{}
var registryOnce sync.Once

func initRegistry() {
	register(&blockCipher{id: "aes128", blockBits: 128, keyBits: 128, newBlock: newAESBlock})
	register(&blockCipher{id: "aes192", blockBits: 128, keyBits: 192, newBlock: newAESBlock})
	register(&blockCipher{id: "aes256", blockBits: 128, keyBits: 256, newBlock: newAESBlock})
	register(&blockCipher{id: "camellia128", blockBits: 128, keyBits: 128, newBlock: camellia.NewCipher})
	register(&blockCipher{id: "camellia192", blockBits: 128, keyBits: 192, newBlock: camellia.NewCipher})
	register(&blockCipher{id: "camellia256", blockBits: 128, keyBits: 256, newBlock: camellia.NewCipher})
	registry["none"] = noneCipher{}
}

func register(c Cipher) { registry[c.CipherID()] = c }

func newAESBlock(key []byte) (cipher.Block, error) { return aes.NewCipher(key) }

// Lookup returns the registered cipher for id, or ok=false if unknown.
// The registry is initialized lazily on first use and is immutable
// thereafter (spec §9 "Global g_ciphers").
func Lookup(id string) (Cipher, bool) {
	registryOnce.Do(initRegistry)
	c, ok := registry[id]
	return c, ok
}

// IsNone reports whether id names the no-encryption sentinel.
func IsNone(id string) bool { return id == "none" }

// blockCipher implements Cipher for any standard Go cipher.Block
// constructor (AES, Camellia): both share the same ECB-context plumbing,
// differing only in block-cipher construction and declared sizes.
type blockCipher struct {
	id        string
	blockBits int
	keyBits   int
	newBlock  func(key []byte) (cipher.Block, error)
}

func (c *blockCipher) CipherID() string    { return c.id }
func (c *blockCipher) BlockSizeBits() int  { return c.blockBits }
func (c *blockCipher) KeySizeBits() int    { return c.keyBits }

func (c *blockCipher) checkKey(key []byte) error {
	if len(key) != c.keyBits/8 {
		return ioerr.Userf("InvalidCipherKey",
			"cipher %q requires a %d-byte key, got %d bytes", c.id, c.keyBits/8, len(key))
	}
	return nil
}

func (c *blockCipher) CreateEncryptionContext(key []byte) (Context, error) {
	if err := c.checkKey(key); err != nil {
		return nil, err
	}
	block, err := c.newBlock(key)
	if err != nil {
		return nil, ioerr.Internal("CipherInitFailed", err)
	}
	return &ecbContext{block: block, blockSize: block.BlockSize(), encrypt: true}, nil
}

func (c *blockCipher) CreateDecryptionContext(key []byte) (Context, error) {
	if err := c.checkKey(key); err != nil {
		return nil, err
	}
	block, err := c.newBlock(key)
	if err != nil {
		return nil, ioerr.Internal("CipherInitFailed", err)
	}
	return &ecbContext{block: block, blockSize: block.BlockSize(), encrypt: false}, nil
}

// ecbContext performs ECB transforms over a cipher.Block: exactly
// block_count*block_size bytes, no IV (spec §4.1 rationale: the encrypted
// file layer addresses ciphertext positionally by block, which an IV
// chain cannot support without per-block counters the format doesn't
// store — a deliberate, preserved design decision).
type ecbContext struct {
	block     cipher.Block
	blockSize int
	encrypt   bool
}

func (c *ecbContext) BlockSize() int { return c.blockSize }

func (c *ecbContext) Transform(input []byte, blockCount int, output []byte) {
	n := blockCount * c.blockSize
	if len(input) < n || len(output) < n {
		panic(fmt.Sprintf("cipher: short buffer for %d blocks of size %d", blockCount, c.blockSize))
	}
	for i := 0; i < n; i += c.blockSize {
		if c.encrypt {
			c.block.Encrypt(output[i:i+c.blockSize], input[i:i+c.blockSize])
		} else {
			c.block.Decrypt(output[i:i+c.blockSize], input[i:i+c.blockSize])
		}
	}
}

// noneCipher is the sentinel "no encryption" cipher: block size 0 means
// callers treat it as a marker rather than a usable transform.
type noneCipher struct{}

func (noneCipher) CipherID() string   { return "none" }
func (noneCipher) BlockSizeBits() int { return 0 }
func (noneCipher) KeySizeBits() int   { return 0 }
func (noneCipher) CreateEncryptionContext([]byte) (Context, error) { return nil, nil }
func (noneCipher) CreateDecryptionContext([]byte) (Context, error) { return nil, nil }
