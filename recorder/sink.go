// This file is part of Supershuckie2.
//
// Supershuckie2 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Supershuckie2 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Supershuckie2.  If not, see <https://www.gnu.org/licenses/>.

package recorder

import (
	"io"
	"os"

	"github.com/SnowyMouse/supershuckie2/curated"
)

// Sink is an append/truncate byte destination for a replay stream.
//
// A Recorder owns two sinks. The final sink receives the header, the patch
// data and then only complete compressed blobs: it is the durable, compact
// copy. The staging sink receives every packet uncompressed as soon as it is
// recorded and is truncated back to the start of the in-progress blob
// whenever a blob completes: after a crash it holds everything the final
// sink holds plus the uncompressed tail that never made it into a blob.
type Sink interface {
	// Write appends bytes to the end of the sink.
	Write(data []byte) error

	// Truncate reduces the sink to the given size. Subsequent writes append
	// from the new end.
	Truncate(size int64) error
}

// FileSink is a Sink backed by an open file.
type FileSink struct {
	f *os.File
}

// NewFileSink embeds an open file in a FileSink. The file remains owned by
// the caller and is not closed by this package.
func NewFileSink(f *os.File) *FileSink {
	return &FileSink{f: f}
}

// Write implements the Sink interface.
func (s *FileSink) Write(data []byte) error {
	if _, err := s.f.Write(data); err != nil {
		return curated.Errorf("sink: %v", err)
	}
	return nil
}

// Truncate implements the Sink interface.
func (s *FileSink) Truncate(size int64) error {
	if err := s.f.Truncate(size); err != nil {
		return curated.Errorf("sink: %v", err)
	}
	if _, err := s.f.Seek(0, io.SeekEnd); err != nil {
		return curated.Errorf("sink: %v", err)
	}
	return nil
}

// BufferSink is a Sink backed by a growable in-memory buffer.
type BufferSink struct {
	data []byte
}

// Write implements the Sink interface.
func (s *BufferSink) Write(data []byte) error {
	s.data = append(s.data, data...)
	return nil
}

// Truncate implements the Sink interface.
func (s *BufferSink) Truncate(size int64) error {
	if size < 0 || size > int64(len(s.data)) {
		return curated.Errorf("sink: truncation size out of range (%d)", size)
	}
	s.data = s.data[:size]
	return nil
}

// Bytes returns the accumulated buffer.
func (s *BufferSink) Bytes() []byte {
	return s.data
}

// NullSink is a Sink that discards everything. Useful when no staging copy
// is wanted.
type NullSink struct{}

// Write implements the Sink interface.
func (NullSink) Write(data []byte) error {
	return nil
}

// Truncate implements the Sink interface.
func (NullSink) Truncate(size int64) error {
	return nil
}
