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

// Package test contains helper functions to remove common boilerplate from
// "go test" tests.
//
// The Expect group of functions mark the test as having failed but allow the
// test to continue. The Demand group of functions mark the test as having
// failed and stop the test immediately. Demand functions are useful when
// subsequent test steps depend on the tested value being correct. For
// example, testing that the lengths of two slices are equal before iterating
// over them in unison.
package test
