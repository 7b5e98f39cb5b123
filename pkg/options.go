package dupreclaim

import "fmt"

// Options holds the tuning values for one scan and resolve run
type Options struct {
	MinFileSize     int64    // Files below this size are discarded by the scanner
	PartialHashSize int      // Bytes hashed by the partial stage
	ChunkSize       int      // Read size for full hashing
	HashAlgorithm   string   // sha1, sha256 or sha512
	HashWorkers     int      // Concurrent hash workers
	SymlinkMode     string   // none, contained or all (directory symlinks)
	IgnorePatterns  []string // Regular expressions of root-relative paths to skip
}

// DefaultOptions returns the reference tuning values
func DefaultOptions() Options {
	return Options{
		MinFileSize:     DefaultMinFileSize,
		PartialHashSize: DefaultPartialHashSize,
		ChunkSize:       DefaultChunkSize,
		HashAlgorithm:   DefaultHashAlgorithm,
		HashWorkers:     DefaultHashWorkers,
		SymlinkMode:     DefaultSymlinkMode,
	}
}

// Validate checks every option value
func (o Options) Validate() error {
	if o.MinFileSize < 0 {
		return fmt.Errorf("minimum file size must not be negative, got %d", o.MinFileSize)
	}
	if o.PartialHashSize <= 0 {
		return fmt.Errorf("partial hash size must be positive, got %d", o.PartialHashSize)
	}
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if err := ValidateHashAlgorithm(o.HashAlgorithm); err != nil {
		return err
	}
	if err := ValidateHashWorkers(o.HashWorkers); err != nil {
		return err
	}
	return ValidateSymlinkMode(o.SymlinkMode)
}
