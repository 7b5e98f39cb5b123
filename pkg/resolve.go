package dupreclaim

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// partialKey identifies a PartialHashBucket: same size and same prefix digest
type partialKey struct {
	size   int64
	digest string
}

// partialBucket is one group of same-size files sharing a prefix digest
type partialBucket struct {
	key   partialKey
	paths []string
}

// hashResult is written by exactly one hash worker
type hashResult struct {
	digest string
	stat   fileStat
	err    error
}

// stageCounter serialises progress reports from concurrent hash workers
type stageCounter struct {
	mu        sync.Mutex
	stage     Stage
	processed int
	total     int
	progress  ProgressReporter
}

func (c *stageCounter) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress.Progress(c.stage, 0, c.total)
}

func (c *stageCounter) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed++
	c.progress.Progress(c.stage, c.processed, c.total)
}

// Resolver confirms duplicates among size buckets with a two-stage hash
type Resolver struct {
	hasher  *Hasher
	workers int
}

// NewResolver creates a resolver from pipeline options
func NewResolver(opts Options) (*Resolver, error) {
	hasher, err := NewHasher(opts)
	if err != nil {
		return nil, err
	}
	if err := ValidateHashWorkers(opts.HashWorkers); err != nil {
		return nil, err
	}
	return &Resolver{hasher: hasher, workers: opts.HashWorkers}, nil
}

// Resolve hashes the prefixes of every multi-member size bucket, then the full
// contents of every multi-member prefix bucket, and returns one record per
// file whose full hash is shared. Unreadable files are skipped. A closed
// shutdownChan yields ErrInterrupted and no records.
func (r *Resolver) Resolve(shutdownChan <-chan struct{}, buckets FileSizeBuckets, progress ProgressReporter) ([]DuplicateRecord, error) {
	defer VerboseEnter()()
	progress = orNop(progress)

	partials, err := r.partialStage(shutdownChan, buckets, progress)
	if err != nil {
		return nil, err
	}

	records, err := r.fullStage(shutdownChan, partials, progress)
	if err != nil {
		return nil, err
	}

	VerboseLog(1, "Confirmed %d duplicate files", len(records))
	return records, nil
}

// partialStage groups candidate files by (size, prefix digest)
func (r *Resolver) partialStage(shutdownChan <-chan struct{}, buckets FileSizeBuckets, progress ProgressReporter) ([]partialBucket, error) {
	type job struct {
		size int64
		path string
	}

	var jobs []job
	for _, size := range buckets.Sizes() {
		paths := buckets[size]
		if len(paths) < 2 {
			continue
		}
		for _, path := range paths {
			jobs = append(jobs, job{size: size, path: path})
		}
	}

	counter := &stageCounter{stage: StagePartialHash, total: len(jobs), progress: progress}
	counter.start()

	results := make([]hashResult, len(jobs))
	err := r.run(shutdownChan, len(jobs), func(i int) error {
		sum, err := r.hasher.Hash(jobs[i].path, HashPartial)
		if err != nil {
			VerboseLog(2, "skipping %s: %v", jobs[i].path, err)
			results[i].err = err
		} else {
			results[i].digest = hex.EncodeToString(sum)
			DebugLog("hash", "partial %s %s", results[i].digest, jobs[i].path)
		}
		counter.done()
		return nil
	})
	if err != nil {
		return nil, err
	}

	grouped := make(map[partialKey][]string)
	for i, res := range results {
		if res.err != nil {
			continue
		}
		key := partialKey{size: jobs[i].size, digest: res.digest}
		grouped[key] = append(grouped[key], jobs[i].path)
	}

	partials := make([]partialBucket, 0, len(grouped))
	for key, paths := range grouped {
		if len(paths) < 2 {
			continue
		}
		partials = append(partials, partialBucket{key: key, paths: paths})
	}
	sort.Slice(partials, func(i, j int) bool {
		if partials[i].key.size != partials[j].key.size {
			return partials[i].key.size < partials[j].key.size
		}
		return partials[i].key.digest < partials[j].key.digest
	})

	DebugLog("resolve", "%d of %d prefix buckets have collisions", len(partials), len(grouped))
	return partials, nil
}

// fullStage hashes every member of each prefix bucket and keeps shared hashes
func (r *Resolver) fullStage(shutdownChan <-chan struct{}, partials []partialBucket, progress ProgressReporter) ([]DuplicateRecord, error) {
	type job struct {
		bucket int
		path   string
	}

	var jobs []job
	bucketJobs := make([][]int, len(partials))
	for b, bucket := range partials {
		for _, path := range bucket.paths {
			bucketJobs[b] = append(bucketJobs[b], len(jobs))
			jobs = append(jobs, job{bucket: b, path: path})
		}
	}

	counter := &stageCounter{stage: StageFullHash, total: len(jobs), progress: progress}
	counter.start()

	results := make([]hashResult, len(jobs))
	err := r.run(shutdownChan, len(jobs), func(i int) error {
		defer counter.done()
		path := jobs[i].path

		sum, err := r.hasher.HashInterruptible(path, HashFull, shutdownChan)
		if errors.Is(err, ErrInterrupted) {
			return err
		}
		if err != nil {
			VerboseLog(2, "skipping %s: %v", path, err)
			results[i].err = err
			return nil
		}

		st, err := statFile(path)
		if err == nil && st.Size != partials[jobs[i].bucket].key.size {
			err = fmt.Errorf("%s changed size during scan", path)
		}
		if err != nil {
			VerboseLog(2, "skipping %s: %v", path, err)
			results[i].err = err
			return nil
		}

		results[i].digest = hex.EncodeToString(sum)
		results[i].stat = st
		DebugLog("hash", "full %s %s", results[i].digest, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var records []DuplicateRecord
	for b, bucket := range partials {
		byHash := make(map[string][]int)
		for _, i := range bucketJobs[b] {
			if results[i].err == nil {
				byHash[results[i].digest] = append(byHash[results[i].digest], i)
			}
		}

		var bucketRecords []DuplicateRecord
		for digest, members := range byHash {
			if len(members) < 2 {
				DebugLog("resolve", "dropping coincidental prefix match %s", jobs[members[0]].path)
				continue
			}
			for _, i := range members {
				bucketRecords = append(bucketRecords,
					newDuplicateRecord(jobs[i].path, digest, bucket.key.digest, results[i].stat))
			}
		}
		sort.Slice(bucketRecords, func(i, j int) bool {
			if bucketRecords[i].Hash != bucketRecords[j].Hash {
				return bucketRecords[i].Hash < bucketRecords[j].Hash
			}
			return bucketRecords[i].Path < bucketRecords[j].Path
		})
		records = append(records, bucketRecords...)
	}

	return records, nil
}

// run calls fn for 0..n-1 on at most r.workers goroutines. It stops handing
// out work once shutdownChan closes and reports ErrInterrupted.
func (r *Resolver) run(shutdownChan <-chan struct{}, n int, fn func(i int) error) error {
	var g errgroup.Group
	g.SetLimit(r.workers)

	interrupted := false
	for i := 0; i < n; i++ {
		select {
		case <-shutdownChan:
			interrupted = true
		default:
		}
		if interrupted {
			break
		}
		g.Go(func() error { return fn(i) })
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if interrupted {
		return ErrInterrupted
	}
	return nil
}
