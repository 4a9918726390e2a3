// Package stream provides the seekable byte-source abstraction every
// other layer of this module rides on: a uniform read/seek/size contract
// over either the local filesystem or an HTTP range-request backend.
//
// A Source is single-consumer: callers must not issue concurrent reads
// or seeks against the same instance. Multiple extractions each own
// their own Source.
package stream

import "io"

// Whence selects the origin a Seek offset is relative to.
type Whence int

const (
	// FromStart seeks relative to the beginning of the stream.
	FromStart Whence = iota
	// FromCurrent seeks relative to the current position.
	FromCurrent
	// FromEnd seeks relative to the end of the stream. Requires a known
	// size; on an HTTPSource this triggers a lazy content-length fetch.
	FromEnd
)

// Source is the capability set both the local and HTTP implementations
// satisfy. Read and Seek are fallible; Size is fallible and may report
// that the length is unknown.
type Source interface {
	// Read reads up to len(buf) bytes starting at the current position,
	// advancing the position by the number of bytes returned. A partial
	// read is not an error; io.EOF indicates no more data is available.
	Read(buf []byte) (n int, err error)

	// Seek moves the current position and returns the new absolute
	// position. It performs no I/O other than, for an HTTPSource, a
	// content-length fetch when whence is FromEnd and the size is not
	// yet known.
	Seek(offset int64, whence Whence) (int64, error)

	// Size returns the total stream length, or ok=false if it cannot be
	// determined (e.g. an HTTP server that refuses HEAD).
	Size() (size int64, ok bool, err error)

	// Stats returns a snapshot of this source's request/byte counters.
	// Local sources report zero values; they never touch the network.
	Stats() Stats
}

// Stats is an opaque counter snapshot; fields are part of the public
// contract only for tests and diagnostics, not for driving logic.
type Stats struct {
	Requests      int64
	BytesFetched  int64
	CacheHits     int64
	CacheMisses   int64
}

// ReadFull reads exactly len(buf) bytes from s at the current position,
// or returns an error (io.ErrUnexpectedEOF on a short read). It is the
// Source equivalent of io.ReadFull.
func ReadFull(s Source, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := s.Read(buf[read:])
		read += n
		if err != nil {
			if err == io.EOF && read == len(buf) {
				return nil
			}
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
	}
	return nil
}

// ReadAt reads exactly len(buf) bytes at absolute offset off, restoring
// nothing about the source's prior position (callers that care must
// save/restore the position themselves via Seek).
func ReadAt(s Source, buf []byte, off int64) error {
	if _, err := s.Seek(off, FromStart); err != nil {
		return err
	}
	return ReadFull(s, buf)
}
