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

// Package curated is a helper package for the plain Go language error type.
// Curated errors implement the error interface.
//
// Curated errors are created with the Errorf() function. It takes a
// formatting pattern and placeholder values, like the Errorf() function in
// the fmt package, and returns an error.
//
// The Is() function checks whether an error was created by Errorf() with a
// specific pattern. Sentinel patterns should be stored as const strings,
// suitably named and commented. For example:
//
//	const NotEnoughData = "not enough data"
//
//	e := curated.Errorf(NotEnoughData)
//
//	if curated.Is(e, NotEnoughData) {
//		fmt.Println("true")
//	}
//
// The Has() function is similar but checks whether the pattern occurs
// anywhere in the error chain, rather than only at the outermost error.
//
// The IsAny() function answers whether the error was created by Errorf() at
// all. We can think of the difference between curated and uncurated errors
// as being 'expected' and 'unexpected', depending on how the result of a
// function call is to be handled.
//
// The Error() function implementation normalises the error chain so that it
// does not contain duplicate adjacent parts. This alleviates the problem of
// when and how to wrap errors: wrapping with the same prefix twice will only
// print the prefix once. Chains are composed of parts separated by the
// sub-string ': ' as suggested on p239 of "The Go Programming Language"
// (Donovan, Kernighan).
package curated
