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

package packet

import (
	"math/bits"
	"unicode/utf8"

	"github.com/SnowyMouse/supershuckie2/curated"
)

// Sentinel error returned when a byte slice is shorter than the packet being
// decoded from it requires.
const NotEnoughData = "packet: not enough data"

// Sentinel error returned when a byte slice contains structurally invalid
// content. The value is a diagnostic string.
const ParseFail = "packet: parse failure: %v"

// Discriminator bytes. The leading byte of every encoded packet. Values
// 0x01 to 0x7f are RunFrames packets with the frame count stored in the
// discriminator itself.
const (
	idNoOp           = 0x00
	maxInlineFrames  = 0x7f
	idRunFramesVar   = 0x80
	idChangeInput8   = 0x81
	idChangeInput16  = 0x82
	idChangeInput32  = 0x83
	idChangeInputVar = 0x84
	idWriteMemory8   = 0x85
	idWriteMemory16  = 0x86
	idWriteMemory32  = 0x87
	idWriteMemoryVar = 0x88
	idKeyframe       = 0xf0
	idBookmark       = 0xf1
	idChangeSpeed    = 0xf2
	idResetConsole   = 0xf3
	idLoadSaveState  = 0xf4
	idCompressedBlob = 0xfe
)

// AppendUint appends the variable-width form of an unsigned integer: zero is
// a single zero byte; any other value is a length byte (1 to 8) followed by
// that many little-endian bytes, using the minimal length needed.
func AppendUint(b []byte, v uint64) []byte {
	if v == 0 {
		return append(b, 0)
	}

	n := (bits.Len64(v) + 7) / 8
	b = append(b, byte(n))
	for i := 0; i < n; i++ {
		b = append(b, byte(v>>(8*i)))
	}

	return b
}

// ReadUint decodes the variable-width form of an unsigned integer, returning
// the value and the remainder of the slice.
func ReadUint(b []byte) (uint64, []byte, error) {
	if len(b) < 1 {
		return 0, b, curated.Errorf(NotEnoughData)
	}

	n := int(b[0])
	b = b[1:]

	if n == 0 {
		return 0, b, nil
	}
	if n > 8 {
		return 0, b, curated.Errorf(ParseFail, curated.Errorf("invalid integer (bad byte length %d)", n))
	}
	if len(b) < n {
		return 0, b, curated.Errorf(NotEnoughData)
	}

	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(b[i]) << (8 * i)
	}

	return v, b[n:], nil
}

// appendBytes appends a length-prefixed byte buffer.
func appendBytes(b []byte, data []byte) []byte {
	b = AppendUint(b, uint64(len(data)))
	return append(b, data...)
}

// readBytes decodes a length-prefixed byte buffer. The returned buffer is a
// copy and does not alias the input slice.
func readBytes(b []byte) ([]byte, []byte, error) {
	l, b, err := ReadUint(b)
	if err != nil {
		return nil, b, err
	}
	if uint64(len(b)) < l {
		return nil, b, curated.Errorf(NotEnoughData)
	}

	data := make([]byte, l)
	copy(data, b[:l])

	return data, b[l:], nil
}

// readString is the same as readBytes except that the bytes must be valid
// UTF-8.
func readString(b []byte) (string, []byte, error) {
	data, b, err := readBytes(b)
	if err != nil {
		return "", b, err
	}
	if !utf8.Valid(data) {
		return "", b, curated.Errorf(ParseFail, curated.Errorf("invalid utf8 sequence"))
	}
	return string(data), b, nil
}

// readFixed decodes exactly n raw bytes.
func readFixed(b []byte, n int) ([]byte, []byte, error) {
	if len(b) < n {
		return nil, b, curated.Errorf(NotEnoughData)
	}
	data := make([]byte, n)
	copy(data, b[:n])
	return data, b[n:], nil
}

func appendSpeed(b []byte, s Speed) []byte {
	// speed is a fixed two byte little-endian value, not a variable-width
	// integer
	return append(b, byte(s), byte(s>>8))
}

func readSpeed(b []byte) (Speed, []byte, error) {
	if len(b) < 2 {
		return 0, b, curated.Errorf(NotEnoughData)
	}
	s := Speed(b[0]) | Speed(b[1])<<8
	if s == 0 {
		return 0, b, curated.Errorf(ParseFail, curated.Errorf("read a zero value where a non-zero speed was expected"))
	}
	return s, b[2:], nil
}

func appendKeyframeMetadata(b []byte, m KeyframeMetadata) []byte {
	b = appendBytes(b, m.Input)
	b = appendSpeed(b, m.Speed)
	b = AppendUint(b, m.ElapsedFrames)
	b = AppendUint(b, m.ElapsedTicks)
	return b
}

func readKeyframeMetadata(b []byte) (KeyframeMetadata, []byte, error) {
	var m KeyframeMetadata
	var err error

	m.Input, b, err = readBytes(b)
	if err != nil {
		return m, b, err
	}
	m.Speed, b, err = readSpeed(b)
	if err != nil {
		return m, b, err
	}
	m.ElapsedFrames, b, err = ReadUint(b)
	if err != nil {
		return m, b, err
	}
	m.ElapsedTicks, b, err = ReadUint(b)

	return m, b, err
}

func appendBookmarkMetadata(b []byte, m BookmarkMetadata) []byte {
	b = appendBytes(b, []byte(m.Name))
	b = AppendUint(b, m.ElapsedFrames)
	b = AppendUint(b, m.ElapsedTicks)
	return b
}

func readBookmarkMetadata(b []byte) (BookmarkMetadata, []byte, error) {
	var m BookmarkMetadata
	var err error

	m.Name, b, err = readString(b)
	if err != nil {
		return m, b, err
	}
	m.ElapsedFrames, b, err = ReadUint(b)
	if err != nil {
		return m, b, err
	}
	m.ElapsedTicks, b, err = ReadUint(b)

	return m, b, err
}

// AppendPacket appends the encoded form of a packet. The encoded stream is
// read back with ReadPacket().
func AppendPacket(b []byte, p Packet) []byte {
	switch p := p.(type) {
	case NoOp:
		b = append(b, idNoOp)

	case RunFrames:
		// small frame counts are inlined into the discriminator byte itself,
		// saving a byte for the overwhelmingly common case of a short frame
		// advance between other packets
		if p.Frames <= maxInlineFrames {
			b = append(b, byte(p.Frames))
		} else {
			b = append(b, idRunFramesVar)
			b = AppendUint(b, p.Frames)
		}

	case ChangeInput:
		switch len(p.Data) {
		case 1:
			b = append(b, idChangeInput8)
			b = append(b, p.Data...)
		case 2:
			b = append(b, idChangeInput16)
			b = append(b, p.Data...)
		case 4:
			b = append(b, idChangeInput32)
			b = append(b, p.Data...)
		default:
			b = append(b, idChangeInputVar)
			b = appendBytes(b, p.Data)
		}

	case WriteMemory:
		// the address always precedes the payload in its variable-width form
		switch len(p.Data) {
		case 1:
			b = append(b, idWriteMemory8)
			b = AppendUint(b, p.Address)
			b = append(b, p.Data...)
		case 2:
			b = append(b, idWriteMemory16)
			b = AppendUint(b, p.Address)
			b = append(b, p.Data...)
		case 4:
			b = append(b, idWriteMemory32)
			b = AppendUint(b, p.Address)
			b = append(b, p.Data...)
		default:
			b = append(b, idWriteMemoryVar)
			b = AppendUint(b, p.Address)
			b = appendBytes(b, p.Data)
		}

	case ChangeSpeed:
		b = append(b, idChangeSpeed)
		b = appendSpeed(b, p.Speed)

	case ResetConsole:
		b = append(b, idResetConsole)

	case LoadSaveState:
		b = append(b, idLoadSaveState)
		b = appendBytes(b, p.State)

	case Keyframe:
		b = append(b, idKeyframe)
		b = appendKeyframeMetadata(b, p.Metadata)
		b = appendBytes(b, p.State)

	case Bookmark:
		b = append(b, idBookmark)
		b = appendBookmarkMetadata(b, p.Metadata)

	case CompressedBlob:
		b = append(b, idCompressedBlob)
		b = AppendUint(b, uint64(len(p.Keyframes)))
		for _, m := range p.Keyframes {
			b = appendKeyframeMetadata(b, m)
		}
		b = AppendUint(b, uint64(len(p.Bookmarks)))
		for _, m := range p.Bookmarks {
			b = appendBookmarkMetadata(b, m)
		}
		b = appendBytes(b, p.Data)
		b = AppendUint(b, p.UncompressedSize)
	}

	return b
}

// ReadPacket decodes one packet from the head of the slice, returning the
// packet and the remainder of the slice.
//
// Errors are NotEnoughData when the slice is shorter than the packet
// requires; and ParseFail when the content is structurally invalid.
func ReadPacket(b []byte) (Packet, []byte, error) {
	if len(b) < 1 {
		return nil, b, curated.Errorf(NotEnoughData)
	}

	d := b[0]
	b = b[1:]

	// inline RunFrames range, including the zero frame NoOp
	if d == idNoOp {
		return NoOp{}, b, nil
	}
	if d <= maxInlineFrames {
		return RunFrames{Frames: uint64(d)}, b, nil
	}

	var err error

	switch d {
	case idRunFramesVar:
		var p RunFrames
		p.Frames, b, err = ReadUint(b)
		return p, b, err

	case idChangeInput8, idChangeInput16, idChangeInput32:
		var p ChangeInput
		p.Data, b, err = readFixed(b, 1<<(d-idChangeInput8))
		return p, b, err

	case idChangeInputVar:
		var p ChangeInput
		p.Data, b, err = readBytes(b)
		return p, b, err

	case idWriteMemory8, idWriteMemory16, idWriteMemory32:
		var p WriteMemory
		p.Address, b, err = ReadUint(b)
		if err != nil {
			return nil, b, err
		}
		p.Data, b, err = readFixed(b, 1<<(d-idWriteMemory8))
		return p, b, err

	case idWriteMemoryVar:
		var p WriteMemory
		p.Address, b, err = ReadUint(b)
		if err != nil {
			return nil, b, err
		}
		p.Data, b, err = readBytes(b)
		return p, b, err

	case idKeyframe:
		var p Keyframe
		p.Metadata, b, err = readKeyframeMetadata(b)
		if err != nil {
			return nil, b, err
		}
		p.State, b, err = readBytes(b)
		return p, b, err

	case idBookmark:
		var p Bookmark
		p.Metadata, b, err = readBookmarkMetadata(b)
		return p, b, err

	case idChangeSpeed:
		var p ChangeSpeed
		p.Speed, b, err = readSpeed(b)
		return p, b, err

	case idResetConsole:
		return ResetConsole{}, b, nil

	case idLoadSaveState:
		var p LoadSaveState
		p.State, b, err = readBytes(b)
		return p, b, err

	case idCompressedBlob:
		var p CompressedBlob
		var n uint64

		n, b, err = ReadUint(b)
		if err != nil {
			return nil, b, err
		}
		for i := uint64(0); i < n; i++ {
			var m KeyframeMetadata
			m, b, err = readKeyframeMetadata(b)
			if err != nil {
				return nil, b, err
			}
			p.Keyframes = append(p.Keyframes, m)
		}

		n, b, err = ReadUint(b)
		if err != nil {
			return nil, b, err
		}
		for i := uint64(0); i < n; i++ {
			var m BookmarkMetadata
			m, b, err = readBookmarkMetadata(b)
			if err != nil {
				return nil, b, err
			}
			p.Bookmarks = append(p.Bookmarks, m)
		}

		p.Data, b, err = readBytes(b)
		if err != nil {
			return nil, b, err
		}
		p.UncompressedSize, b, err = ReadUint(b)
		return p, b, err
	}

	return nil, b, curated.Errorf(ParseFail, curated.Errorf("unknown packet discriminator 0x%02x", d))
}
