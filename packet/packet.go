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

// Package packet defines the individual operations in a replay stream and
// the binary encoding used to store them.
//
// The set of packets is closed and versioned with the file format. Decoding
// is an exhaustive switch over the leading discriminator byte of each packet,
// see ReadPacket() for details of the wire form.
//
// The contents of a WriteMemory, ChangeInput, LoadSaveState or Keyframe
// payload are opaque to this package. They mean whatever the emulation core
// that produced them says they mean.
package packet

// Packet is one operation in a replay stream.
//
// The interface is sealed. The full set of implementations is: NoOp,
// RunFrames, WriteMemory, ChangeInput, ChangeSpeed, ResetConsole,
// LoadSaveState, Bookmark, Keyframe and CompressedBlob.
type Packet interface {
	// Name returns the readable name of the packet type.
	Name() string

	// seals the Packet interface to this package
	sealed()
}

// NoOp does nothing.
type NoOp struct{}

// RunFrames runs the emulation for Frames frames.
type RunFrames struct {
	Frames uint64
}

// WriteMemory writes Data to the given address. How the address is
// interpreted is emulator-specific.
type WriteMemory struct {
	Address uint64
	Data    []byte
}

// ChangeInput sets the current input. The encoding of the input bytes is
// emulator-specific.
type ChangeInput struct {
	Data []byte
}

// ChangeSpeed sets the current emulation speed.
type ChangeSpeed struct {
	Speed Speed
}

// ResetConsole hard-resets the console.
type ResetConsole struct{}

// LoadSaveState loads a save state. The state bytes come from the emulation
// core's own save/restore capability and are never interpreted by the replay
// engine.
type LoadSaveState struct {
	State []byte
}

// Bookmark is a named, non-restorable marker in the replay. Useful for
// navigation only.
type Bookmark struct {
	Metadata BookmarkMetadata
}

// Keyframe carries a full opaque emulation-state snapshot, allowing the
// replay to be entered at this point without replaying from the start.
type Keyframe struct {
	Metadata KeyframeMetadata
	State    []byte
}

// CompressedBlob is a contiguous run of packets compressed together, along
// with a sidecar list of the keyframes and bookmarks contained within. The
// sidecar lists are summaries only; the state bytes of a keyframe live
// inside the compressed data.
type CompressedBlob struct {
	Keyframes        []KeyframeMetadata
	Bookmarks        []BookmarkMetadata
	Data             []byte
	UncompressedSize uint64
}

// KeyframeMetadata is the payload of a keyframe, not including the save
// state data.
type KeyframeMetadata struct {
	// input at the time the keyframe was captured
	Input []byte

	// speed at the time the keyframe was captured
	Speed Speed

	// number of elapsed frames
	ElapsedFrames uint64

	// number of elapsed emulator ticks multiplied by 256. this is the
	// canonical elapsed-time unit of the file format and is scaled by the
	// prevailing speed
	ElapsedTicks uint64
}

// BookmarkMetadata is the payload of a bookmark.
type BookmarkMetadata struct {
	Name          string
	ElapsedFrames uint64
	ElapsedTicks  uint64
}

// Name implements the Packet interface.
func (NoOp) Name() string { return "NoOp" }

// Name implements the Packet interface.
func (RunFrames) Name() string { return "RunFrames" }

// Name implements the Packet interface.
func (WriteMemory) Name() string { return "WriteMemory" }

// Name implements the Packet interface.
func (ChangeInput) Name() string { return "ChangeInput" }

// Name implements the Packet interface.
func (ChangeSpeed) Name() string { return "ChangeSpeed" }

// Name implements the Packet interface.
func (ResetConsole) Name() string { return "ResetConsole" }

// Name implements the Packet interface.
func (LoadSaveState) Name() string { return "LoadSaveState" }

// Name implements the Packet interface.
func (Bookmark) Name() string { return "Bookmark" }

// Name implements the Packet interface.
func (Keyframe) Name() string { return "Keyframe" }

// Name implements the Packet interface.
func (CompressedBlob) Name() string { return "CompressedBlob" }

func (NoOp) sealed()           {}
func (RunFrames) sealed()      {}
func (WriteMemory) sealed()    {}
func (ChangeInput) sealed()    {}
func (ChangeSpeed) sealed()    {}
func (ResetConsole) sealed()   {}
func (LoadSaveState) sealed()  {}
func (Bookmark) sealed()       {}
func (Keyframe) sealed()       {}
func (CompressedBlob) sealed() {}
