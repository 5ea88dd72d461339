// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

// Package upload streams a flight log to the analysis service as a
// sequence of file_chunk messages followed by one file_complete.
//
// A file of S bytes is cut into ceil(S / ChunkSize) slices, each
// base64-encoded and sent in strictly increasing index order. The
// Uploader waits a fixed throttle after every chunk so the service is
// not flooded, then sends file_complete with the chunk count and a
// BLAKE3 digest of the whole file. An empty file produces no chunks
// and a file_complete with totalChunks 0.
//
// A read or send failure aborts the transfer. There is no per-chunk
// retry: the caller starts a new upload if it wants one.
package upload
