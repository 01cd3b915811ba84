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

// Speed is an emulation speed as a fixed point value. Dividing by 256 yields
// the speed multiplier. Zero is not a valid speed; normal speed is always
// represented as 256/256.
type Speed uint16

// NormalSpeed is a multiplier of 1.0.
const NormalSpeed Speed = 256

// SpeedFromMultiplier converts a speed multiplier to the fixed point form.
func SpeedFromMultiplier(multiplier float64) Speed {
	return Speed(multiplier * 256.0)
}

// Multiplier converts the fixed point form to a speed multiplier.
func (s Speed) Multiplier() float64 {
	if s == 0 {
		return 1.0 / 256.0
	}
	return float64(s) / 256.0
}
