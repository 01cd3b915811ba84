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

// Package crunched compresses and decompresses the packet blobs in a replay
// file.
//
// Blobs are zstd frames. The replay file records the uncompressed size of
// every blob alongside the compressed bytes and decompression verifies the
// recorded size against the real size: a blob that decompresses to the wrong
// length is an error, never a silently truncated result.
package crunched

import (
	"sync"

	"github.com/SnowyMouse/supershuckie2/curated"
	"github.com/klauspost/compress/zstd"
)

// Sentinel error returned by Decompress if the recorded uncompressed size
// does not match the real uncompressed size.
const WrongSize = "crunched: uncompressed size is incorrect (expected %d but was %d)"

// DefaultLevel selects the zstd library's standard compression level.
const DefaultLevel = 0

// encoders are reusable and safe for concurrent use of EncodeAll(), but one
// is needed per compression level
var encoders = struct {
	sync.Mutex
	enc map[zstd.EncoderLevel]*zstd.Encoder
}{
	enc: make(map[zstd.EncoderLevel]*zstd.Encoder),
}

// a single decoder is enough for the entire process
var decoder *zstd.Decoder
var decoderErr error
var decoderOnce sync.Once

// the recorded uncompressed size only sizes the preallocation up to this
// cap. DecodeAll grows the buffer beyond it as needed, so a forged size
// cannot force a huge allocation before any byte has decompressed
const maxPrealloc = 1 << 24

func encoder(level int) (*zstd.Encoder, error) {
	el := zstd.SpeedDefault
	if level != DefaultLevel {
		el = zstd.EncoderLevelFromZstd(level)
	}

	encoders.Lock()
	defer encoders.Unlock()

	if enc, ok := encoders.enc[el]; ok {
		return enc, nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(el))
	if err != nil {
		return nil, curated.Errorf("crunched: %v", err)
	}
	encoders.enc[el] = enc

	return enc, nil
}

// Compress data into a zstd frame. A level of DefaultLevel selects the
// library's standard compression level.
func Compress(data []byte, level int) ([]byte, error) {
	enc, err := encoder(level)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

// Decompress a zstd frame. The uncompressedSize argument is the size recorded
// when the frame was compressed. Corrupt frames and frames that decompress to
// a length other than uncompressedSize are an error.
func Decompress(data []byte, uncompressedSize int) ([]byte, error) {
	if uncompressedSize < 0 {
		return nil, curated.Errorf("crunched: impossible uncompressed size %d", uncompressedSize)
	}

	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	if decoderErr != nil {
		return nil, curated.Errorf("crunched: %v", decoderErr)
	}

	prealloc := uncompressedSize
	if prealloc > maxPrealloc {
		prealloc = maxPrealloc
	}

	decompressed, err := decoder.DecodeAll(data, make([]byte, 0, prealloc))
	if err != nil {
		return nil, curated.Errorf("crunched: %v", err)
	}

	if len(decompressed) != uncompressedSize {
		return nil, curated.Errorf(WrongSize, uncompressedSize, len(decompressed))
	}

	return decompressed, nil
}
