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

package digest_test

import (
	"strings"
	"testing"

	"github.com/SnowyMouse/supershuckie2/digest"
	"github.com/SnowyMouse/supershuckie2/test"
)

func TestSum(t *testing.T) {
	a := digest.Sum([]byte("hello, world"))
	b := digest.Sum([]byte("hello, world"))
	c := digest.Sum([]byte("hello, world!"))

	test.ExpectEquality(t, a, b)
	test.ExpectInequality(t, a, c)
	test.ExpectFailure(t, a.IsZero())
	test.ExpectSuccess(t, digest.Hash{}.IsZero())
}

func TestString(t *testing.T) {
	s := digest.Sum([]byte("hello, world")).String()

	// 32 bytes render as 64 hexadecimal digits
	test.DemandEquality(t, len(s), 64)

	// uppercase hexadecimal only
	test.ExpectEquality(t, strings.Trim(s, "0123456789ABCDEF"), "")
}
