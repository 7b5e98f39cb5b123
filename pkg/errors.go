package dupreclaim

import "errors"

// Input errors, reported before any scan work starts
var (
	ErrNoRoots     = errors.New("no root paths given")
	ErrInvalidRoot = errors.New("invalid root path")
)

// Pipeline and session errors
var (
	ErrInterrupted    = errors.New("operation interrupted by shutdown")
	ErrScanInProgress = errors.New("a scan is already in progress")
)

// Aggregation errors
var (
	ErrNoDuplicates    = errors.New("no duplicates in record set")
	ErrInvalidGrouping = errors.New("invalid grouping index")
	ErrGroupNotFound   = errors.New("group not found")
	ErrInvalidPolicy   = errors.New("invalid keep policy")
)

// Cleanup errors
var (
	ErrInvalidDestination = errors.New("invalid destination directory")
	ErrRetainedChanged    = errors.New("retained copy missing or changed")
)
