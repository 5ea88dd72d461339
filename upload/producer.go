// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// ChunkSize is the number of file bytes carried by each chunk before
// encoding. The service reassembles by index, so changing it only
// changes how many messages a file takes.
const ChunkSize = 1 << 20 // 1 MiB

// DigestPrefix tags the algorithm in FileComplete.Digest.
const DigestPrefix = "blake3:"

// TotalChunks returns the number of chunks a file of size bytes is
// split into: ceil(size / ChunkSize).
func TotalChunks(size int64) int {
	if size <= 0 {
		return 0
	}
	return int((size + ChunkSize - 1) / ChunkSize)
}

// Chunk is one encoded slice of a file.
type Chunk struct {
	Index int
	Total int
	// Size is the number of raw bytes in the slice.
	Size int
	// Data is the standard base64 encoding of the slice.
	Data string
}

// Producer yields the encoded chunks of a Source in order. It reads
// lazily, one chunk per call, and cannot be rewound: once it has
// returned the last chunk or an error, every later call returns the
// same end result.
//
// A Producer is not safe for concurrent use.
type Producer struct {
	source Source
	total  int
	next   int
	buffer []byte
	hasher *blake3.Hasher
	err    error
}

// NewProducer returns a Producer positioned at chunk 0.
func NewProducer(source Source) *Producer {
	return &Producer{
		source: source,
		total:  TotalChunks(source.Size),
		hasher: blake3.New(),
	}
}

// Total returns the number of chunks the Producer yields.
func (p *Producer) Total() int {
	return p.total
}

// Next returns the next chunk, or nil once all chunks have been
// produced. A read failure is returned as an error and ends the
// sequence.
func (p *Producer) Next() (*Chunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.next >= p.total {
		return nil, nil
	}

	index := p.next
	offset := int64(index) * ChunkSize
	length := min(int64(ChunkSize), p.source.Size-offset)
	if p.buffer == nil {
		p.buffer = make([]byte, min(int64(ChunkSize), p.source.Size))
	}
	slice := p.buffer[:length]

	read, err := p.source.Data.ReadAt(slice, offset)
	// ReadAt may report io.EOF together with a full read at the end
	// of the data.
	if read == len(slice) && errors.Is(err, io.EOF) {
		err = nil
	}
	if err == nil && read != len(slice) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		p.err = fmt.Errorf("reading chunk %d of %s: %w", index, p.source.Name, err)
		return nil, p.err
	}

	p.hasher.Write(slice)
	p.next++
	return &Chunk{
		Index: index,
		Total: p.total,
		Size:  len(slice),
		Data:  base64.StdEncoding.EncodeToString(slice),
	}, nil
}

// Digest returns "blake3:<hex>" of every byte produced. It is only
// meaningful once Next has returned nil; before that it is an error.
func (p *Producer) Digest() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.next < p.total {
		return "", fmt.Errorf("digest requested after %d of %d chunks", p.next, p.total)
	}
	return DigestPrefix + hex.EncodeToString(p.hasher.Sum(nil)), nil
}
