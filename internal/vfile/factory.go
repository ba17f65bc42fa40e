package vfile

import (
	"github.com/siodb/iomgr/internal/cipher"
	"github.com/siodb/iomgr/internal/ioerr"
)

// Open opens (or creates) path using cipherID/key: the "none" sentinel
// yields a PlainFile, any other registered cipher id yields an
// EncryptedFile (spec §4.1, §4.2, §6.2).
func Open(path string, create bool, cipherID string, key []byte) (File, error) {
	if cipher.IsNone(cipherID) {
		return OpenPlain(path, create)
	}
	c, ok := cipher.Lookup(cipherID)
	if !ok {
		return nil, ioerr.Userf("InvalidCipherId", "unknown cipher id %q", cipherID)
	}
	if create {
		return CreateEncrypted(path, c, key)
	}
	return OpenEncrypted(path, c, key)
}
