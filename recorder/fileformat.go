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
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/SnowyMouse/supershuckie2/curated"
	"github.com/SnowyMouse/supershuckie2/digest"
	"github.com/SnowyMouse/supershuckie2/logger"
)

// replay file layout
// ------------------
//
// [2048-byte header] [patch data] [packet stream to EOF]
//
// header layout, all integers little-endian
//
//	0x000 start magic "NIDO"
//	0x004 format version (uint32)
//	0x008 console type (uint32)
//	0x00c reserved (4 bytes)
//	0x010 emulator core name (256 bytes, nul-terminated utf8)
//	0x110 patch data length (uint64)
//	0x118 patch format (uint32)
//	0x11c reserved (4 bytes)
//	0x120 patch target hash (32 bytes)
//	0x140 internal ROM name (256 bytes, nul-terminated utf8)
//	0x240 ROM filename (256 bytes, nul-terminated utf8)
//	0x340 ROM hash (32 bytes)
//	0x360 BIOS hash (32 bytes)
//	0x380 reserved padding
//	0x7fc end magic "RINA"

// HeaderSize is the exact size of a replay file header in bytes. The packet
// stream begins at HeaderSize plus the recorded patch data length.
const HeaderSize = 2048

// Version of the replay file format. Files with any other version number are
// rejected; the format is not forward-compatible.
const Version = 2

var magicStart = []byte("NIDO")
var magicEnd = []byte("RINA")

const (
	offMagicStart      = 0x000
	offVersion         = 0x004
	offConsole         = 0x008
	offCoreName        = 0x010
	offPatchDataLength = 0x110
	offPatchFormat     = 0x118
	offPatchTargetHash = 0x120
	offROMName         = 0x140
	offROMFilename     = 0x240
	offROMHash         = 0x340
	offBIOSHash        = 0x360
	offMagicEnd        = 0x7fc

	// nul-terminated string fields are this size, limiting the string itself
	// to one byte less
	stringFieldSize = 256
)

// ConsoleType is the console a replay was recorded on. Unrecognised values
// survive a parse so that they can be reported rather than crashed on.
type ConsoleType uint32

// List of valid ConsoleType values.
const (
	ConsoleUnknown ConsoleType = iota
	ConsoleGameBoy
	ConsoleSuperGameBoy2
	ConsoleGameBoyColor
	ConsoleGameBoyAdvance
	ConsoleNintendoDS
)

func (c ConsoleType) String() string {
	switch c {
	case ConsoleUnknown:
		return "Unknown"
	case ConsoleGameBoy:
		return "Game Boy"
	case ConsoleSuperGameBoy2:
		return "Super Game Boy 2"
	case ConsoleGameBoyColor:
		return "Game Boy Color"
	case ConsoleGameBoyAdvance:
		return "Game Boy Advance"
	case ConsoleNintendoDS:
		return "Nintendo DS"
	}
	return fmt.Sprintf("unrecognised console (0x%08x)", uint32(c))
}

// PatchFormat is the format of the patch data stored between the header and
// the packet stream. As with ConsoleType, unrecognised values survive a
// parse.
type PatchFormat uint32

// List of valid PatchFormat values.
const (
	PatchNone PatchFormat = iota
	PatchBPS
)

func (p PatchFormat) String() string {
	switch p {
	case PatchNone:
		return "unpatched"
	case PatchBPS:
		return "BPS"
	}
	return fmt.Sprintf("unrecognised patch format (0x%08x)", uint32(p))
}

// Metadata identifies the content a replay was recorded against. It is
// constructed once at recording start from the live emulation core's
// reported identity and is immutable for the life of the file.
//
// The hash fields are opaque 32-byte content digests. The replay engine
// carries them verbatim and never re-derives them.
type Metadata struct {
	Console     ConsoleType
	ROMName     string
	ROMFilename string
	ROMHash     digest.Hash
	BIOSHash    digest.Hash

	// name of the emulator core, including version. if this does not match
	// the core a replay is played against, the Compare() function will say so
	CoreName string

	PatchFormat     PatchFormat
	PatchTargetHash digest.Hash
}

// encodeHeader produces the byte-exact 2048-byte header for the metadata.
func (m Metadata) encodeHeader(patchDataLength uint64) ([]byte, error) {
	b := make([]byte, HeaderSize)

	putString := func(off int, s string, name string) error {
		// one byte is always reserved for the nul terminator
		if len(s) > stringFieldSize-1 {
			return curated.Errorf("recorder: %s exceeds %d bytes", name, stringFieldSize-1)
		}
		copy(b[off:off+stringFieldSize-1], s)
		return nil
	}

	copy(b[offMagicStart:], magicStart)
	binary.LittleEndian.PutUint32(b[offVersion:], Version)
	binary.LittleEndian.PutUint32(b[offConsole:], uint32(m.Console))

	if err := putString(offCoreName, m.CoreName, "core name"); err != nil {
		return nil, err
	}

	binary.LittleEndian.PutUint64(b[offPatchDataLength:], patchDataLength)
	binary.LittleEndian.PutUint32(b[offPatchFormat:], uint32(m.PatchFormat))
	copy(b[offPatchTargetHash:], m.PatchTargetHash[:])

	if err := putString(offROMName, m.ROMName, "ROM name"); err != nil {
		return nil, err
	}
	if err := putString(offROMFilename, m.ROMFilename, "ROM filename"); err != nil {
		return nil, err
	}

	copy(b[offROMHash:], m.ROMHash[:])
	copy(b[offBIOSHash:], m.BIOSHash[:])
	copy(b[offMagicEnd:], magicEnd)

	return b, nil
}

// decodeHeader parses a replay file header. Both magics and the version
// number are validated before any other field is touched. The patch data
// length is returned alongside the metadata.
func decodeHeader(b []byte) (Metadata, uint64, error) {
	var m Metadata

	if len(b) < HeaderSize {
		return m, 0, curated.Errorf(InvalidReplayFile, curated.Errorf("file is smaller than the %d byte header", HeaderSize))
	}

	if !bytes.Equal(b[offMagicStart:offMagicStart+4], magicStart) {
		return m, 0, curated.Errorf(InvalidReplayFile, curated.Errorf("unrecognised start magic % 02x", b[offMagicStart:offMagicStart+4]))
	}
	if !bytes.Equal(b[offMagicEnd:offMagicEnd+4], magicEnd) {
		return m, 0, curated.Errorf(InvalidReplayFile, curated.Errorf("unrecognised end magic % 02x", b[offMagicEnd:offMagicEnd+4]))
	}
	if v := binary.LittleEndian.Uint32(b[offVersion:]); v != Version {
		return m, 0, curated.Errorf(InvalidReplayFile, curated.Errorf("unrecognised format version %d (want %d)", v, Version))
	}

	getString := func(off int, name string) (string, error) {
		field := b[off : off+stringFieldSize]
		i := bytes.IndexByte(field, 0)
		if i == -1 {
			return "", curated.Errorf(InvalidReplayFile, curated.Errorf("%s length exceeds %d bytes", name, stringFieldSize-1))
		}
		if !utf8.Valid(field[:i]) {
			return "", curated.Errorf(InvalidReplayFile, curated.Errorf("%s is not valid utf8", name))
		}
		return string(field[:i]), nil
	}

	var err error

	// unrecognised console and patch format codes are kept as they are. the
	// caller can report the raw value without the file being unreadable
	m.Console = ConsoleType(binary.LittleEndian.Uint32(b[offConsole:]))
	m.PatchFormat = PatchFormat(binary.LittleEndian.Uint32(b[offPatchFormat:]))

	if m.CoreName, err = getString(offCoreName, "core name"); err != nil {
		return m, 0, err
	}
	if m.ROMName, err = getString(offROMName, "ROM name"); err != nil {
		return m, 0, err
	}
	if m.ROMFilename, err = getString(offROMFilename, "ROM filename"); err != nil {
		return m, 0, err
	}

	copy(m.PatchTargetHash[:], b[offPatchTargetHash:])
	copy(m.ROMHash[:], b[offROMHash:])
	copy(m.BIOSHash[:], b[offBIOSHash:])

	patchDataLength := binary.LittleEndian.Uint64(b[offPatchDataLength:])

	return m, patchDataLength, nil
}

// Compare the identity recorded in a replay with the identity of the
// currently loaded content. The returned strings are warnings, not errors: a
// replay may be deliberately played against modified content and it is the
// caller's decision whether to proceed.
func (m Metadata) Compare(current Metadata) []string {
	var warnings []string

	if m.Console != current.Console {
		warnings = append(warnings, fmt.Sprintf("replay was recorded on %v not %v", m.Console, current.Console))
	}
	if m.CoreName != current.CoreName {
		warnings = append(warnings, fmt.Sprintf("replay was recorded with core %q not %q", m.CoreName, current.CoreName))
	}
	if m.ROMHash != current.ROMHash {
		warnings = append(warnings, "ROM hash differs from the hash in the replay")
	}
	if m.BIOSHash != current.BIOSHash {
		warnings = append(warnings, "BIOS hash differs from the hash in the replay")
	}

	for _, w := range warnings {
		logger.Log("playback", w)
	}

	return warnings
}
