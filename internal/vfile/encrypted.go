package vfile

import (
	"encoding/binary"
	"sync"

	"github.com/siodb/iomgr/internal/cipher"
	"github.com/siodb/iomgr/internal/ioerr"
)

// EncryptedFile wraps a PlainFile with fixed-block ECB encryption over a
// plaintext-addressed container (spec §4.2):
//
//	[ header region (align_up(8,block) bytes, encrypted) ]
//	[ data region   (align_up(plaintext_size,block) bytes, encrypted) ]
//
// The header stores the little-endian plaintext size, zero-padded to a
// block multiple, encrypted under the same key as the data region.
type EncryptedFile struct {
	mu         sync.Mutex
	plain      *PlainFile
	enc        cipher.Context
	dec        cipher.Context
	blockSize  int
	headerSize int64 // align_up(8, blockSize)
	plainSize  int64
}

func alignUp(n, align int64) int64 {
	if align <= 0 {
		return n
	}
	return (n + align - 1) / align * align
}

// CreateEncrypted creates a new, empty encrypted file at path.
func CreateEncrypted(path string, c cipher.Cipher, key []byte) (*EncryptedFile, error) {
	plain, err := OpenPlain(path, true)
	if err != nil {
		return nil, err
	}
	enc, err := c.CreateEncryptionContext(key)
	if err != nil {
		plain.Close()
		return nil, err
	}
	dec, err := c.CreateDecryptionContext(key)
	if err != nil {
		plain.Close()
		return nil, err
	}
	blockSize := enc.BlockSize()
	ef := &EncryptedFile{
		plain: plain, enc: enc, dec: dec,
		blockSize: blockSize, headerSize: alignUp(8, int64(blockSize)),
	}
	if err := ef.writeHeader(0); err != nil {
		plain.Close()
		return nil, err
	}
	return ef, nil
}

// OpenEncrypted opens an existing encrypted file, verifying the header
// (spec §4.2 "Open existing" checks).
func OpenEncrypted(path string, c cipher.Cipher, key []byte) (*EncryptedFile, error) {
	plain, err := OpenPlain(path, false)
	if err != nil {
		return nil, err
	}
	enc, err := c.CreateEncryptionContext(key)
	if err != nil {
		plain.Close()
		return nil, err
	}
	dec, err := c.CreateDecryptionContext(key)
	if err != nil {
		plain.Close()
		return nil, err
	}
	blockSize := enc.BlockSize()
	headerSize := alignUp(8, int64(blockSize))
	rawSize := plain.Size()
	if rawSize%int64(blockSize) != 0 {
		plain.Close()
		return nil, ioerr.Internal("InvalidData", errInvalidRawSize)
	}
	ef := &EncryptedFile{plain: plain, enc: enc, dec: dec, blockSize: blockSize, headerSize: headerSize}
	plainSize, err := ef.readHeader()
	if err != nil {
		plain.Close()
		return nil, err
	}
	if headerSize+alignUp(plainSize, int64(blockSize)) != rawSize {
		plain.Close()
		return nil, ioerr.Internal("InvalidData", errHeaderSizeMismatch)
	}
	ef.plainSize = plainSize
	return ef, nil
}

func (ef *EncryptedFile) readHeader() (int64, error) {
	raw := make([]byte, ef.headerSize)
	n, err := ef.plain.Read(raw, 0)
	if err != nil {
		return 0, err
	}
	if int64(n) != ef.headerSize {
		return 0, ioerr.Internal("InvalidData", errShortHeader)
	}
	dec := make([]byte, ef.headerSize)
	ef.dec.Transform(raw, int(ef.headerSize/int64(ef.blockSize)), dec)
	return int64(binary.LittleEndian.Uint64(dec[:8])), nil
}

func (ef *EncryptedFile) writeHeader(plainSize int64) error {
	raw := make([]byte, ef.headerSize)
	binary.LittleEndian.PutUint64(raw[:8], uint64(plainSize))
	enc := make([]byte, ef.headerSize)
	ef.enc.Transform(raw, int(ef.headerSize/int64(ef.blockSize)), enc)
	if _, err := ef.plain.Write(enc, 0); err != nil {
		return err
	}
	ef.plainSize = plainSize
	return nil
}

func (ef *EncryptedFile) cipherOffset(plainOffset int64) int64 {
	return ef.headerSize + plainOffset
}

// Read implements the three-phase decrypt described in spec §4.2: a
// partial leading block, whole aligned middle blocks, and a partial
// trailing block.
func (ef *EncryptedFile) Read(buf []byte, offset int64) (int, error) {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	if offset >= ef.plainSize {
		return 0, nil
	}
	want := len(buf)
	if offset+int64(want) > ef.plainSize {
		want = int(ef.plainSize - offset)
	}
	bs := int64(ef.blockSize)
	firstBlock := offset / bs
	lastBlockEnd := alignUp(offset+int64(want), bs)
	nBlocks := (lastBlockEnd - firstBlock*bs) / bs

	raw := make([]byte, nBlocks*bs)
	n, err := ef.plain.Read(raw, ef.cipherOffset(firstBlock*bs))
	if err != nil {
		return 0, err
	}
	// Decrypt whatever aligned prefix of whole blocks actually arrived;
	// a short underlying read still yields a valid, if smaller, result.
	readBlocks := int64(n) / bs
	if readBlocks == 0 {
		return 0, nil
	}
	plain := make([]byte, readBlocks*bs)
	ef.dec.Transform(raw[:readBlocks*bs], int(readBlocks), plain)

	start := offset - firstBlock*bs
	avail := int64(len(plain)) - start
	if avail <= 0 {
		return 0, nil
	}
	n2 := int64(want)
	if avail < n2 {
		n2 = avail
	}
	copy(buf[:n2], plain[start:start+n2])
	return int(n2), nil
}

// Write implements the read-modify-write / bulk-encrypt / fresh-block
// paths of spec §4.2, growing plaintext size and re-persisting the header
// whenever the write extends the file.
func (ef *EncryptedFile) Write(buf []byte, offset int64) (int, error) {
	ef.mu.Lock()
	defer ef.mu.Unlock()

	bs := int64(ef.blockSize)
	end := offset + int64(len(buf))
	newPlainSize := ef.plainSize
	if end > newPlainSize {
		newPlainSize = end
	}

	firstBlock := offset / bs
	lastBlockEnd := alignUp(end, bs)
	nBlocks := (lastBlockEnd - firstBlock*bs) / bs
	blockRegionStart := firstBlock * bs

	// Load the existing plaintext of the span we're about to overwrite,
	// to preserve untouched bytes in partial leading/trailing blocks.
	existingLen := nBlocks * bs
	existing := make([]byte, existingLen)
	if blockRegionStart < ef.plainSize {
		// Read whatever ciphertext already exists in this span.
		readLen := existingLen
		if blockRegionStart+readLen > alignUp(ef.plainSize, bs) {
			readLen = alignUp(ef.plainSize, bs) - blockRegionStart
		}
		if readLen > 0 {
			raw := make([]byte, readLen)
			n, err := ef.plain.Read(raw, ef.cipherOffset(blockRegionStart))
			if err != nil {
				return 0, err
			}
			readBlocks := int64(n) / bs
			if readBlocks > 0 {
				ef.dec.Transform(raw[:readBlocks*bs], int(readBlocks), existing[:readBlocks*bs])
			}
		}
	}
	// Any region beyond plainSize within `existing` is implicitly zero
	// (fresh-block / gap-zero-padding path, spec §4.2.1).

	copy(existing[offset-blockRegionStart:], buf)

	enc := make([]byte, existingLen)
	ef.enc.Transform(existing, int(nBlocks), enc)

	// Ensure underlying ciphertext region is extended before writing past
	// the current raw end.
	neededRaw := ef.headerSize + lastBlockEnd
	if curRaw := ef.plain.Size(); neededRaw > curRaw {
		if err := ef.plain.Extend(neededRaw - curRaw); err != nil {
			return 0, err
		}
	}

	n, err := ef.plain.Write(enc, ef.cipherOffset(blockRegionStart))
	writtenBlocks := int64(n) / bs
	writtenPlain := writtenBlocks*bs - (offset - blockRegionStart)
	if writtenPlain < 0 {
		writtenPlain = 0
	}
	if writtenPlain > int64(len(buf)) {
		writtenPlain = int64(len(buf))
	}

	committedEnd := blockRegionStart + writtenBlocks*bs
	committedPlainSize := ef.plainSize
	if committedEnd > committedPlainSize {
		committedPlainSize = committedEnd
	}
	if committedEnd >= end && newPlainSize > committedPlainSize {
		committedPlainSize = newPlainSize
	}
	if committedPlainSize > ef.plainSize {
		if herr := ef.writeHeader(committedPlainSize); herr != nil {
			if err == nil {
				err = herr
			}
		}
	}
	if err != nil {
		return int(writtenPlain), err
	}
	return int(writtenPlain), nil
}

func (ef *EncryptedFile) Size() int64 {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	return ef.plainSize
}

func (ef *EncryptedFile) Stat() (Stat, error) {
	return Stat{Size: ef.Size()}, nil
}

// Extend appends up to one partial block of plaintext padding within the
// current last block, then extends ciphertext as needed and rewrites the
// header (spec §4.2 Extend).
func (ef *EncryptedFile) Extend(length int64) error {
	if length < 0 {
		return ioerr.Userf("InvalidArgument", "negative extend length %d", length)
	}
	ef.mu.Lock()
	defer ef.mu.Unlock()
	bs := int64(ef.blockSize)
	newPlainSize := ef.plainSize + length
	newRawNeeded := ef.headerSize + alignUp(newPlainSize, bs)
	if cur := ef.plain.Size(); newRawNeeded > cur {
		if err := ef.plain.Extend(newRawNeeded - cur); err != nil {
			return err
		}
	}
	return ef.writeHeader(newPlainSize)
}

func (ef *EncryptedFile) Flush() error {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	return ef.plain.Flush()
}

func (ef *EncryptedFile) Close() error {
	ef.mu.Lock()
	defer ef.mu.Unlock()
	return ef.plain.Close()
}

var (
	errInvalidRawSize     = ioerr.Userf("InvalidData", "encrypted file size is not a multiple of the cipher block size").Err
	errHeaderSizeMismatch = ioerr.Userf("InvalidData", "encrypted file header declares a plaintext size inconsistent with the file size").Err
	errShortHeader        = ioerr.Userf("InvalidData", "encrypted file header is truncated").Err
)
