// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"errors"
	"fmt"
)

// ErrUploadInProgress is returned by Upload while another upload is
// sending.
var ErrUploadInProgress = errors.New("upload: another upload is in progress")

// UploadError reports an aborted transfer. ChunkIndex is the chunk
// that could not be read or sent; it equals TotalChunks when the
// chunks all went out and the file_complete message failed.
type UploadError struct {
	FileName    string
	ChunkIndex  int
	TotalChunks int
	Err         error
}

func (e *UploadError) Error() string {
	if e.ChunkIndex >= e.TotalChunks {
		return fmt.Sprintf("upload %s: completing after %d chunks: %v", e.FileName, e.TotalChunks, e.Err)
	}
	return fmt.Sprintf("upload %s: chunk %d/%d: %v", e.FileName, e.ChunkIndex+1, e.TotalChunks, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
