// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source is a file to upload. Data is read with ReadAt, so a Source
// can be read by a Producer without disturbing any other reader.
type Source struct {
	// Name is sent as fileName. It should be a base name; the service
	// stores the upload under it.
	Name string
	// Size is the number of bytes to send.
	Size int64
	// Data supplies the bytes in [0, Size).
	Data io.ReaderAt
}

// BytesSource returns a Source over an in-memory buffer.
func BytesSource(name string, data []byte) Source {
	return Source{Name: name, Size: int64(len(data)), Data: bytes.NewReader(data)}
}

// File is a Source backed by an open file. Close it when the upload
// finishes.
type File struct {
	Source
	file *os.File
}

// OpenFile opens path for upload. The file name sent to the service is
// the base name of path.
func OpenFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("upload: stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, fmt.Errorf("upload: %s is not a regular file", path)
	}
	return &File{
		Source: Source{Name: filepath.Base(path), Size: info.Size(), Data: file},
		file:   file,
	}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.file.Close()
}
