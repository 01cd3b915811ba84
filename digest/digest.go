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

// Package digest computes and represents the 32-byte content digests used to
// identify ROM, BIOS and patch-target data in a replay file.
//
// The replay engine itself never re-derives these digests. They are computed
// once by whoever loads the content (the emulation driver, or the inspection
// tool) and carried verbatim through the file header. The digest algorithm is
// BLAKE3, the algorithm the replay file format was defined with.
package digest

import (
	"fmt"

	"lukechampine.com/blake3"
)

// Hash is a 32-byte content digest.
type Hash [32]byte

// Sum returns the digest of the supplied data.
func Sum(data []byte) Hash {
	return blake3.Sum256(data)
}

// IsZero returns true if the hash contains nothing but zero bytes. A zero
// hash is what an unrecorded field in a replay header looks like.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the digest as an uppercase hexadecimal string, suitable for
// displaying.
func (h Hash) String() string {
	return fmt.Sprintf("%X", h[:])
}
