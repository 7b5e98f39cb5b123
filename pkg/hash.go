package dupreclaim

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// HashAlgorithm represents a hash algorithm configuration
type HashAlgorithm struct {
	Name    string
	TypeID  uint16
	Size    int
	NewFunc func() hash.Hash
}

// GetHashAlgorithm returns the hash algorithm configuration for the given name
func GetHashAlgorithm(name string) (*HashAlgorithm, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return &HashAlgorithm{
			Name:    "sha1",
			TypeID:  HashTypeSHA1,
			Size:    HashSizeSHA1,
			NewFunc: sha1.New,
		}, nil
	case "sha256":
		return &HashAlgorithm{
			Name:    "sha256",
			TypeID:  HashTypeSHA256,
			Size:    HashSizeSHA256,
			NewFunc: sha256.New,
		}, nil
	case "sha512":
		return &HashAlgorithm{
			Name:    "sha512",
			TypeID:  HashTypeSHA512,
			Size:    HashSizeSHA512,
			NewFunc: sha512.New,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// HashMode selects how much of a file is hashed
type HashMode int

const (
	HashPartial HashMode = iota // Prefix only
	HashFull                    // Entire contents
)

func (m HashMode) String() string {
	switch m {
	case HashPartial:
		return "partial"
	case HashFull:
		return "full"
	default:
		return fmt.Sprintf("HashMode(%d)", int(m))
	}
}

// Hasher computes partial and full content digests
type Hasher struct {
	algorithm   *HashAlgorithm
	partialSize int
	chunkSize   int
}

// NewHasher creates a hasher from pipeline options
func NewHasher(opts Options) (*Hasher, error) {
	algorithm, err := GetHashAlgorithm(opts.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	if opts.PartialHashSize <= 0 {
		return nil, fmt.Errorf("partial hash size must be positive, got %d", opts.PartialHashSize)
	}
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	return &Hasher{
		algorithm:   algorithm,
		partialSize: opts.PartialHashSize,
		chunkSize:   opts.ChunkSize,
	}, nil
}

// Algorithm returns the digest algorithm in use
func (h *Hasher) Algorithm() *HashAlgorithm {
	return h.algorithm
}

// Hash digests a file according to mode
func (h *Hasher) Hash(filePath string, mode HashMode) ([]byte, error) {
	return h.HashInterruptible(filePath, mode, nil)
}

// HashHex digests a file and returns the lowercase hex encoding
func (h *Hasher) HashHex(filePath string, mode HashMode) (string, error) {
	sum, err := h.Hash(filePath, mode)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// HashInterruptible digests a file and checks shutdownChan between chunk reads
func (h *Hasher) HashInterruptible(filePath string, mode HashMode, shutdownChan <-chan struct{}) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := h.algorithm.NewFunc()

	if mode == HashPartial {
		if _, err := io.CopyN(hasher, file, int64(h.partialSize)); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read prefix of %s: %w", filePath, err)
		}
		return hasher.Sum(nil), nil
	}

	buffer := make([]byte, h.chunkSize)
	for {
		select {
		case <-shutdownChan:
			return nil, ErrInterrupted
		default:
		}

		n, err := file.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read from file %s: %w", filePath, err)
		}
	}

	return hasher.Sum(nil), nil
}
