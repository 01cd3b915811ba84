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
	"strings"
	"testing"

	"github.com/SnowyMouse/supershuckie2/curated"
	"github.com/SnowyMouse/supershuckie2/digest"
	"github.com/SnowyMouse/supershuckie2/test"
)

func testMetadata() Metadata {
	return Metadata{
		Console:         ConsoleGameBoyColor,
		ROMName:         "POKEMON CRYSTAL",
		ROMFilename:     "crystal.gbc",
		ROMHash:         digest.Sum([]byte("rom")),
		BIOSHash:        digest.Sum([]byte("bios")),
		CoreName:        "supershuckie 2.0.0",
		PatchFormat:     PatchBPS,
		PatchTargetHash: digest.Sum([]byte("target")),
	}
}

func TestHeaderEncoding(t *testing.T) {
	m := testMetadata()

	b, err := m.encodeHeader(1234)
	test.DemandSuccess(t, err)
	test.DemandEquality(t, len(b), HeaderSize)

	// magics and version sit at fixed offsets
	test.ExpectEquality(t, string(b[0x000:0x004]), "NIDO")
	test.ExpectEquality(t, string(b[0x7fc:0x800]), "RINA")
	test.ExpectEquality(t, b[offVersion], byte(Version))

	// strings are nul-terminated in place
	test.ExpectEquality(t, string(b[offROMName:offROMName+15]), "POKEMON CRYSTAL")
	test.ExpectEquality(t, b[offROMName+15], byte(0))

	d, patchLength, err := decodeHeader(b)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, patchLength, uint64(1234))
	test.ExpectEquality(t, d, m)
}

func TestHeaderValidation(t *testing.T) {
	m := testMetadata()

	b, err := m.encodeHeader(0)
	test.DemandSuccess(t, err)

	// too short
	_, _, err = decodeHeader(b[:100])
	test.ExpectSuccess(t, curated.Is(err, InvalidReplayFile))

	// bad start magic
	c := append([]byte(nil), b...)
	c[0] = 'X'
	_, _, err = decodeHeader(c)
	test.ExpectSuccess(t, curated.Is(err, InvalidReplayFile))

	// bad end magic
	c = append([]byte(nil), b...)
	c[offMagicEnd] = 'X'
	_, _, err = decodeHeader(c)
	test.ExpectSuccess(t, curated.Is(err, InvalidReplayFile))

	// unsupported version
	c = append([]byte(nil), b...)
	c[offVersion] = Version + 1
	_, _, err = decodeHeader(c)
	test.ExpectSuccess(t, curated.Is(err, InvalidReplayFile))

	// strings that are not valid utf8 are rejected
	c = append([]byte(nil), b...)
	c[offCoreName] = 0xff
	c[offCoreName+1] = 0xfe
	_, _, err = decodeHeader(c)
	test.ExpectSuccess(t, curated.Is(err, InvalidReplayFile))
}

func TestHeaderUnknownCodesSurvive(t *testing.T) {
	m := testMetadata()
	m.Console = ConsoleType(0x77)
	m.PatchFormat = PatchFormat(0x99)

	b, err := m.encodeHeader(0)
	test.DemandSuccess(t, err)

	// a console or patch format this build does not know about is not an
	// error. the raw code is kept so it can be reported
	d, _, err := decodeHeader(b)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, uint32(d.Console), uint32(0x77))
	test.ExpectEquality(t, uint32(d.PatchFormat), uint32(0x99))
	test.ExpectSuccess(t, strings.Contains(d.Console.String(), "unrecognised"))
}

func TestHeaderStringOverflow(t *testing.T) {
	m := testMetadata()
	m.ROMName = strings.Repeat("a", 256)
	_, err := m.encodeHeader(0)
	test.ExpectFailure(t, err)

	// 255 bytes leaves room for the nul terminator
	m.ROMName = strings.Repeat("a", 255)
	_, err = m.encodeHeader(0)
	test.ExpectSuccess(t, err)
}

func TestMetadataCompare(t *testing.T) {
	m := testMetadata()

	test.ExpectEquality(t, len(m.Compare(m)), 0)

	current := testMetadata()
	current.Console = ConsoleGameBoy
	current.CoreName = "supershuckie 2.1.0"
	current.ROMHash = digest.Sum([]byte("different rom"))
	test.ExpectEquality(t, len(m.Compare(current)), 3)
}
