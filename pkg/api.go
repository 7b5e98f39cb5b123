package dupreclaim

// FindDuplicates scans roots and confirms duplicates on the calling
// goroutine. Use Session to run the same pipeline in the background.
func FindDuplicates(shutdownChan <-chan struct{}, roots []string, opts Options, progress ProgressReporter) ([]DuplicateRecord, error) {
	scanner, err := NewScanner(opts)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(opts)
	if err != nil {
		return nil, err
	}
	return findDuplicates(shutdownChan, roots, scanner, resolver, progress)
}

func findDuplicates(shutdownChan <-chan struct{}, roots []string, scanner *Scanner, resolver *Resolver, progress ProgressReporter) ([]DuplicateRecord, error) {
	result, err := scanner.Scan(shutdownChan, roots, progress)
	if err != nil {
		return nil, err
	}
	return resolver.Resolve(shutdownChan, result.Buckets, progress)
}

// InitDebugFlags initialises debug flags - for CLI compatibility
func InitDebugFlags(flagsStr string) {
	if flagsStr != "" {
		SetDebugFlags(flagsStr)
	}
}
