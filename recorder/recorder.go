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
	"fmt"

	"github.com/SnowyMouse/supershuckie2/crunched"
	"github.com/SnowyMouse/supershuckie2/curated"
	"github.com/SnowyMouse/supershuckie2/packet"
)

// Sentinel error returned by every mutating function after an earlier error
// left the stream in an unknown state.
const Poisoned = "recorder: stream poisoned by earlier error"

// Sentinel error returned by every function called after Close().
const StreamClosed = "recorder: stream closed"

// Sentinel error returned when an argument is unusable but the stream is
// still functional.
const BadInput = "recorder: bad input: %v"

// DefaultBlobThreshold is the uncompressed blob size that triggers a
// rollover when Settings.BlobThreshold is zero.
const DefaultBlobThreshold = 512 * 1024 * 1024

// Settings for a Recorder. The zero value selects sensible defaults.
type Settings struct {
	// uncompressed bytes per blob before the blob is compressed and written
	// to the final sink. zero selects DefaultBlobThreshold
	BlobThreshold int

	// zstd compression level. zero selects the library default
	CompressionLevel int
}

// InitialConditions describe the live emulation core at the moment recording
// starts. They seed the mandatory keyframe at elapsed-frame zero.
type InitialConditions struct {
	// current encoded input
	Input []byte

	// current speed. zero selects packet.NormalSpeed
	Speed packet.Speed

	// the core's elapsed-time counter (ticks multiplied by 256)
	Ticks uint64

	// opaque serialized state from the core's own save capability
	SaveState []byte
}

// Recorder incrementally writes a replay file, one logical operation at a
// time.
//
// To finish the stream, Close() must be called. It is recommended to insert
// a keyframe immediately before closing so that the length of the replay can
// be estimated accurately on playback.
//
// A Recorder is not safe for concurrent use. See NonBlocking for driving a
// Recorder from a latency-sensitive loop.
type Recorder struct {
	set Settings

	final   Sink
	staging Sink

	// the current blob accumulates encoded packets until it reaches the blob
	// threshold. every append is mirrored to the staging sink immediately
	blob          []byte
	blobKeyframes []packet.KeyframeMetadata
	blobBookmarks []packet.BookmarkMetadata

	// size of the committed prefix of both sinks. the staging sink is
	// truncated back to this on every rollover
	blobOffset int64

	// frames advanced since the last distinct packet. flushed as a single
	// RunFrames packet before the next distinct packet is written
	pendingFrames uint64

	elapsedFrames uint64
	elapsedTicks  uint64

	// tracked values for deduplication
	input []byte
	speed packet.Speed

	poisoned bool
	closed   bool
}

// NewRecorder begins a new replay. The header and patch data are written to
// both sinks immediately, followed by the mandatory keyframe at
// elapsed-frame zero.
func NewRecorder(final Sink, staging Sink, metadata Metadata, patchData []byte, init InitialConditions, set Settings) (*Recorder, error) {
	if set.BlobThreshold <= 0 {
		set.BlobThreshold = DefaultBlobThreshold
	}
	if init.Speed == 0 {
		init.Speed = packet.NormalSpeed
	}

	header, err := metadata.encodeHeader(uint64(len(patchData)))
	if err != nil {
		return nil, err
	}

	for _, snk := range []Sink{final, staging} {
		if err := snk.Write(header); err != nil {
			return nil, err
		}
		if err := snk.Write(patchData); err != nil {
			return nil, err
		}
	}

	rec := &Recorder{
		set:        set,
		final:      final,
		staging:    staging,
		blobOffset: int64(HeaderSize + len(patchData)),
		speed:      init.Speed,
		input:      append([]byte(nil), init.Input...),
	}

	if _, err := rec.InsertKeyframe(init.SaveState, init.Ticks); err != nil {
		return nil, err
	}

	return rec, nil
}

// IsPoisoned returns true if an unrecoverable error has occurred. A poisoned
// stream rejects every subsequent operation.
func (rec *Recorder) IsPoisoned() bool {
	return rec.poisoned
}

// guarded runs one mutating operation under the poison discipline: if an
// earlier operation failed part way then nothing more may touch the sinks;
// if this operation fails part way the stream is unrecoverable from here on.
func (rec *Recorder) guarded(f func() error) error {
	if rec.closed {
		return curated.Errorf(StreamClosed)
	}
	if rec.poisoned {
		return curated.Errorf(Poisoned)
	}

	rec.poisoned = true
	if err := f(); err != nil {
		return err
	}
	rec.poisoned = false

	return nil
}

// append encoded packet bytes to the current blob, mirroring them to the
// staging sink immediately.
func (rec *Recorder) append(enc []byte) error {
	rec.blob = append(rec.blob, enc...)
	return rec.staging.Write(enc)
}

// flushPendingFrames writes any accumulated frame advances as a single
// RunFrames packet. this gives natural run-length packing of the common
// "advance N frames, then do something" pattern.
func (rec *Recorder) flushPendingFrames() error {
	if rec.pendingFrames == 0 {
		return nil
	}
	enc := packet.AppendPacket(nil, packet.RunFrames{Frames: rec.pendingFrames})
	rec.pendingFrames = 0
	return rec.append(enc)
}

// writePacket writes one packet, preceded by any pending RunFrames packet,
// and rolls the blob over if it has reached the size threshold.
func (rec *Recorder) writePacket(p packet.Packet) error {
	if err := rec.flushPendingFrames(); err != nil {
		return err
	}
	if err := rec.append(packet.AppendPacket(nil, p)); err != nil {
		return err
	}
	if len(rec.blob) >= rec.set.BlobThreshold {
		return rec.nextBlob()
	}
	return nil
}

// nextBlob finalises the current blob: compress, wrap into a CompressedBlob
// packet carrying the keyframes and bookmarks recorded since the last
// rollover, append to the final sink and rewrite the staging sink tail.
func (rec *Recorder) nextBlob() error {
	if err := rec.flushPendingFrames(); err != nil {
		return err
	}

	compressed, err := crunched.Compress(rec.blob, rec.set.CompressionLevel)
	if err != nil {
		return curated.Errorf("recorder: %v", err)
	}

	enc := packet.AppendPacket(nil, packet.CompressedBlob{
		Keyframes:        rec.blobKeyframes,
		Bookmarks:        rec.blobBookmarks,
		Data:             compressed,
		UncompressedSize: uint64(len(rec.blob)),
	})

	if err := rec.final.Write(enc); err != nil {
		return err
	}

	// the staging sink now holds the same committed prefix as the final
	// sink. a crash from here until the end of the next blob leaves the
	// staging sink holding the committed state plus an uncompressed tail
	if err := rec.staging.Truncate(rec.blobOffset); err != nil {
		return err
	}
	if err := rec.staging.Write(enc); err != nil {
		return err
	}

	rec.blobOffset += int64(len(enc))
	rec.blob = rec.blob[:0]
	rec.blobKeyframes = nil
	rec.blobBookmarks = nil

	return nil
}

// NextFrame advances the recording by one frame. Consecutive frame advances
// accumulate and are written as a single RunFrames packet when the next
// distinct packet arrives.
func (rec *Recorder) NextFrame() error {
	if rec.closed {
		return curated.Errorf(StreamClosed)
	}
	if rec.poisoned {
		return curated.Errorf(Poisoned)
	}
	rec.elapsedFrames++
	rec.pendingFrames++
	return nil
}

// SetInput sets the current input. The input bytes are opaque; setting an
// input equal to the current input is a no-op that writes nothing.
func (rec *Recorder) SetInput(input []byte) error {
	if bytes.Equal(rec.input, input) && !rec.closed && !rec.poisoned {
		return nil
	}
	return rec.guarded(func() error {
		if err := rec.writePacket(packet.ChangeInput{Data: input}); err != nil {
			return err
		}
		rec.input = append(rec.input[:0], input...)
		return nil
	})
}

// SetSpeed sets the current speed. Zero is not a valid speed; setting a
// speed equal to the current speed is a no-op that writes nothing.
func (rec *Recorder) SetSpeed(speed packet.Speed) error {
	if speed == 0 {
		return curated.Errorf(BadInput, curated.Errorf("zero is not a valid speed"))
	}
	if speed == rec.speed && !rec.closed && !rec.poisoned {
		return nil
	}
	return rec.guarded(func() error {
		if err := rec.writePacket(packet.ChangeSpeed{Speed: speed}); err != nil {
			return err
		}
		rec.speed = speed
		return nil
	})
}

// WriteMemory records a write of data to the given address. Both are opaque
// to the replay engine.
func (rec *Recorder) WriteMemory(address uint64, data []byte) error {
	return rec.guarded(func() error {
		return rec.writePacket(packet.WriteMemory{Address: address, Data: data})
	})
}

// ResetConsole records a hard reset.
func (rec *Recorder) ResetConsole() error {
	return rec.guarded(func() error {
		return rec.writePacket(packet.ResetConsole{})
	})
}

// LoadSaveState records the loading of a save state. The state bytes are
// opaque to the replay engine.
func (rec *Recorder) LoadSaveState(state []byte) error {
	return rec.guarded(func() error {
		return rec.writePacket(packet.LoadSaveState{State: state})
	})
}

// AddBookmark records a named marker at the current frame.
func (rec *Recorder) AddBookmark(name string) error {
	return rec.guarded(func() error {
		m := packet.BookmarkMetadata{
			Name:          name,
			ElapsedFrames: rec.elapsedFrames,
			ElapsedTicks:  rec.elapsedTicks,
		}
		rec.blobBookmarks = append(rec.blobBookmarks, m)
		return rec.writePacket(packet.Bookmark{Metadata: m})
	})
}

// InsertKeyframe records a full snapshot of the emulation state, allowing
// playback to be entered at this point. The state bytes come from the
// emulation core's own save capability and the elapsed-time counter from the
// core's own clock; neither is interpreted here.
//
// The elapsed-time counter must never decrease between keyframes. A
// decreasing counter is an integration error and the function panics.
//
// Returns the elapsed-frame count the keyframe is on.
func (rec *Recorder) InsertKeyframe(state []byte, elapsedTicks uint64) (uint64, error) {
	if elapsedTicks < rec.elapsedTicks {
		panic(fmt.Sprintf("keyframe elapsed-time counter decreased (%d < %d)", elapsedTicks, rec.elapsedTicks))
	}

	err := rec.guarded(func() error {
		rec.elapsedTicks = elapsedTicks

		m := packet.KeyframeMetadata{
			Input:         append([]byte(nil), rec.input...),
			Speed:         rec.speed,
			ElapsedFrames: rec.elapsedFrames,
			ElapsedTicks:  elapsedTicks,
		}
		rec.blobKeyframes = append(rec.blobKeyframes, m)

		return rec.writePacket(packet.Keyframe{Metadata: m, State: state})
	})
	if err != nil {
		return 0, err
	}

	return rec.elapsedFrames, nil
}

// Close performs a final rollover and marks the Recorder unusable. Any
// subsequent call returns StreamClosed.
func (rec *Recorder) Close() error {
	if rec.closed {
		return curated.Errorf(StreamClosed)
	}
	if rec.poisoned {
		rec.closed = true
		return curated.Errorf(Poisoned)
	}

	rec.closed = true

	rec.poisoned = true
	if err := rec.nextBlob(); err != nil {
		return err
	}
	rec.poisoned = false

	return nil
}
