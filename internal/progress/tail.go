package progress

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

const maxLineBytes = 1024 * 1024

// Last returns up to n trailing complete lines of the log at path and the
// offset just past them. A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open progress log: %w", err)
	}
	defer file.Close()

	var ring []string
	if n > 0 {
		ring = make([]string, 0, n)
	}
	offset, err := scanComplete(file, func(line string) {
		if n <= 0 {
			return
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, line)
	})
	if err != nil {
		return nil, 0, err
	}
	return ring, offset, nil
}

// ReadFrom returns the complete lines written after offset and the new offset.
// An offset beyond the end of the file (the log was replaced) restarts at 0.
func ReadFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open progress log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat progress log: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek progress log: %w", err)
	}

	var lines []string
	consumed, err := scanComplete(file, func(line string) { lines = append(lines, line) })
	if err != nil {
		return nil, offset, err
	}
	return lines, offset + consumed, nil
}

// Follow polls the log from offset and hands each new complete line to emit
// until ctx is done. It returns nil when ctx is cancelled.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(string)) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		lines, next, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// scanComplete feeds every newline-terminated line to fn and returns the
// number of bytes consumed. A trailing partial line is left for the next read.
func scanComplete(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		chunk, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			var line []byte
			line = append(line, chunk...)
			for errors.Is(err, bufio.ErrBufferFull) && len(line) < maxLineBytes {
				chunk, err = reader.ReadSlice('\n')
				line = append(line, chunk...)
			}
			chunk = line
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				return consumed, fmt.Errorf("read progress log: line exceeds %d bytes", maxLineBytes)
			}
			return consumed, fmt.Errorf("read progress log: %w", err)
		}
		consumed += int64(len(chunk))
		fn(string(bytes.TrimRight(chunk, "\r\n")))
	}
}
