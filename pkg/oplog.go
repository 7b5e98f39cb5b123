package dupreclaim

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/google/vectorio"
)

// opLog appends one line per cleanup attempt to a log file
type opLog struct {
	file *os.File
	path string
}

// openOpLog opens path for appending, creating it if needed
func openOpLog(path string) (*opLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open cleanup log %s: %w", path, err)
	}
	return &opLog{file: file, path: path}, nil
}

// record writes "<time>\t<op>\t<OK|FAILED>\t<source>\t<target>[\t<reason>]"
func (l *opLog) record(op, source, target string, opErr error) error {
	status := "OK"
	if opErr != nil {
		status = "FAILED"
	}

	fields := []string{time.Now().Format(time.RFC3339), op, status, source, target}
	if opErr != nil {
		fields = append(fields, opErr.Error())
	}

	parts := make([][]byte, 0, 2*len(fields))
	for i, field := range fields {
		if i > 0 {
			parts = append(parts, []byte("\t"))
		}
		if field != "" {
			parts = append(parts, []byte(field))
		}
	}
	parts = append(parts, []byte("\n"))

	iovecs := make([]syscall.Iovec, len(parts))
	expected := 0
	for i, part := range parts {
		iovecs[i].Base = &part[0]
		iovecs[i].SetLen(len(part))
		expected += len(part)
	}

	// One writev per line keeps lines whole under O_APPEND
	nw, err := vectorio.WritevRaw(uintptr(l.file.Fd()), iovecs)
	if err != nil {
		return fmt.Errorf("failed to write cleanup log %s: %w", l.path, err)
	}
	if nw != expected {
		return fmt.Errorf("cleanup log write incomplete: wrote %d bytes, expected %d", nw, expected)
	}
	return nil
}

func (l *opLog) Close() error {
	return l.file.Close()
}
