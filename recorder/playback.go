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
	"sort"
	"sync/atomic"

	"github.com/SnowyMouse/supershuckie2/crunched"
	"github.com/SnowyMouse/supershuckie2/curated"
	"github.com/SnowyMouse/supershuckie2/logger"
	"github.com/SnowyMouse/supershuckie2/packet"
)

// Sentinel error returned when a replay file cannot be opened at all.
const InvalidReplayFile = "playback: invalid replay file: %v"

// Sentinel error returned when a packet inside an opened replay cannot be
// decoded or decompressed.
const BrokenPacket = "playback: broken packet: %v"

// Sentinel error returned by GoToKeyframe when no keyframe exists on the
// requested frame. The second value is the frame of the nearest keyframe at
// or before the requested frame.
const NoSuchKeyframe = "playback: no keyframe on frame %d (nearest is on frame %d)"

// keyframeLoc locates a keyframe in the packet stream. for a keyframe
// inside a compressed blob the keyframe packet is found by scanning the
// decompressed contents.
type keyframeLoc struct {
	entry int
	blob  bool
}

// blobStatus is the result cell for one blob decompression. the done channel
// is closed after packets and err have been written, which makes reading
// them safe from any goroutine that has observed the close.
type blobStatus struct {
	packets []packet.Packet
	err     error
	done    chan struct{}
}

// one top-level packet from the replay stream.
type playbackEntry struct {
	p packet.Packet

	// nil until decompression of a compressed blob has been requested.
	// replaced with nil again when the blob is evicted
	status *blobStatus
}

// Playback reads a replay file and yields its packets in recorded order,
// transparently flattening compressed blobs. Compressed blobs are held
// decompressed only around the read cursor, so memory use stays bounded by
// roughly two blobs regardless of replay length.
//
// A Playback is driven from a single goroutine. EnableThreading moves blob
// decompression to background goroutines but does not change that rule.
type Playback struct {
	metadata Metadata
	patch    []byte

	entries []playbackEntry

	// read cursor. nextIdx is the entry the next packet comes from; subIdx
	// is the position within that entry's decompressed blob
	nextIdx int
	subIdx  int

	// keyframe and bookmark indices, built from blob metadata without
	// decompressing anything
	keyframes      map[uint64][]keyframeLoc
	keyframeOrder  []packet.KeyframeMetadata
	keyframeFrames []uint64
	bookmarks      map[string][]packet.BookmarkMetadata
	bookmarkOrder  []packet.BookmarkMetadata

	threaded bool
	live     atomic.Bool
}

// NewPlayback opens a replay file held in memory. The header, patch data and
// every top-level packet are decoded eagerly; the contents of compressed
// blobs are not touched until the read cursor reaches them.
//
// With tolerateCorruption set, a replay that turns unreadable part way
// through is truncated to its last good packet instead of rejected. The
// structural requirements on the stream still apply to what remains.
func NewPlayback(data []byte, tolerateCorruption bool) (*Playback, error) {
	pb := &Playback{
		keyframes: make(map[uint64][]keyframeLoc),
		bookmarks: make(map[string][]packet.BookmarkMetadata),
	}
	pb.live.Store(true)

	var err error
	var patchLength uint64

	if pb.metadata, patchLength, err = decodeHeader(data); err != nil {
		return nil, err
	}

	if patchLength > uint64(len(data)-HeaderSize) {
		return nil, curated.Errorf(InvalidReplayFile, curated.Errorf("patch data extends past the end of the file"))
	}
	pb.patch = data[HeaderSize : HeaderSize+int(patchLength)]

	rem := data[HeaderSize+int(patchLength):]
	for len(rem) > 0 {
		var p packet.Packet
		p, rem, err = packet.ReadPacket(rem)
		if err != nil {
			if tolerateCorruption {
				logger.Logf("playback", "replay truncated to last good packet: %v", err)
				break
			}
			return nil, curated.Errorf(InvalidReplayFile, err)
		}
		pb.index(p, len(pb.entries))
		pb.entries = append(pb.entries, playbackEntry{p: p})
	}

	if err := pb.validate(); err != nil {
		return nil, err
	}

	sort.Slice(pb.keyframeFrames, func(i, j int) bool {
		return pb.keyframeFrames[i] < pb.keyframeFrames[j]
	})

	return pb, nil
}

// index records the keyframes and bookmarks reachable from one top-level
// packet. blob metadata is used directly so that no blob needs
// decompressing.
func (pb *Playback) index(p packet.Packet, entry int) {
	addKeyframe := func(m packet.KeyframeMetadata, blob bool) {
		pb.keyframes[m.ElapsedFrames] = append(pb.keyframes[m.ElapsedFrames], keyframeLoc{
			entry: entry,
			blob:  blob,
		})
		pb.keyframeOrder = append(pb.keyframeOrder, m)
		pb.keyframeFrames = append(pb.keyframeFrames, m.ElapsedFrames)
	}
	addBookmark := func(m packet.BookmarkMetadata) {
		pb.bookmarks[m.Name] = append(pb.bookmarks[m.Name], m)
		pb.bookmarkOrder = append(pb.bookmarkOrder, m)
	}

	switch v := p.(type) {
	case packet.Keyframe:
		addKeyframe(v.Metadata, false)
	case packet.Bookmark:
		addBookmark(v.Metadata)
	case packet.CompressedBlob:
		for _, m := range v.Keyframes {
			addKeyframe(m, true)
		}
		for _, m := range v.Bookmarks {
			addBookmark(m)
		}
	}
}

// validate enforces the structural requirements on the decoded stream: at
// least one packet, a keyframe first, and a keyframe on frame zero. These
// hold even when corruption is being tolerated.
func (pb *Playback) validate() error {
	if len(pb.entries) == 0 {
		return curated.Errorf(InvalidReplayFile, curated.Errorf("replay contains no packets"))
	}

	switch v := pb.entries[0].p.(type) {
	case packet.Keyframe:
		// ok
	case packet.CompressedBlob:
		if len(v.Keyframes) == 0 {
			return curated.Errorf(InvalidReplayFile, curated.Errorf("first blob contains no keyframe"))
		}
	default:
		return curated.Errorf(InvalidReplayFile, curated.Errorf("first packet is %s, not a keyframe", v.Name()))
	}

	if _, ok := pb.keyframes[0]; !ok {
		return curated.Errorf(InvalidReplayFile, curated.Errorf("no keyframe on frame zero"))
	}

	return nil
}

// Metadata returns the identity recorded in the replay header.
func (pb *Playback) Metadata() Metadata {
	return pb.metadata
}

// PatchData returns the patch stored in the replay, if any. The returned
// slice aliases the data given to NewPlayback.
func (pb *Playback) PatchData() []byte {
	return pb.patch
}

// Keyframes returns the metadata of every keyframe in the replay, in
// recorded order.
func (pb *Playback) Keyframes() []packet.KeyframeMetadata {
	return pb.keyframeOrder
}

// Bookmarks returns the metadata of every bookmark in the replay, in
// recorded order.
func (pb *Playback) Bookmarks() []packet.BookmarkMetadata {
	return pb.bookmarkOrder
}

// FindBookmark returns every bookmark with the given name, in recorded
// order. Bookmark names are not required to be unique.
func (pb *Playback) FindBookmark(name string) []packet.BookmarkMetadata {
	return pb.bookmarks[name]
}

// TotalFrames estimates the length of the replay in frames from the last
// keyframe. Frames advanced after the final keyframe are not counted.
func (pb *Playback) TotalFrames() uint64 {
	if len(pb.keyframeFrames) == 0 {
		return 0
	}
	return pb.keyframeFrames[len(pb.keyframeFrames)-1]
}

// TotalTicks estimates the length of the replay as an elapsed-time counter
// value, in the same way as TotalFrames.
func (pb *Playback) TotalTicks() uint64 {
	var ticks uint64
	for _, m := range pb.keyframeOrder {
		if m.ElapsedTicks > ticks {
			ticks = m.ElapsedTicks
		}
	}
	return ticks
}

// EnableThreading moves blob decompression to background goroutines. While
// packets from one blob are being consumed, the next blob is decompressed in
// parallel; reaching it then usually costs nothing. The Playback must still
// be driven from a single goroutine.
func (pb *Playback) EnableThreading() {
	pb.threaded = true
	pb.prefetch()
}

// Close stops any background decompression. Only required after
// EnableThreading, but always safe.
func (pb *Playback) Close() {
	pb.live.Store(false)
}

// decompressBlob expands one compressed blob into its packets.
func decompressBlob(blob packet.CompressedBlob) ([]packet.Packet, error) {
	// the recorded size is read from the file and cannot be trusted. a zstd
	// block never expands beyond 1<<15 times its compressed bytes, so any
	// size past that ratio is a forgery and is rejected before it can drive
	// an allocation
	if blob.UncompressedSize>>15 > uint64(len(blob.Data)) {
		return nil, curated.Errorf(BrokenPacket,
			curated.Errorf("implausible uncompressed size %d for a %d byte blob", blob.UncompressedSize, len(blob.Data)))
	}

	data, err := crunched.Decompress(blob.Data, int(blob.UncompressedSize))
	if err != nil {
		return nil, curated.Errorf(BrokenPacket, err)
	}

	var packets []packet.Packet
	for len(data) > 0 {
		var p packet.Packet
		p, data, err = packet.ReadPacket(data)
		if err != nil {
			return nil, curated.Errorf(BrokenPacket, err)
		}
		if _, ok := p.(packet.CompressedBlob); ok {
			return nil, curated.Errorf(BrokenPacket, curated.Errorf("compressed blob nested inside a compressed blob"))
		}
		packets = append(packets, p)
	}

	return packets, nil
}

// startDecompress begins decompression of the blob at the given entry, in
// the background if threading is enabled. A no-op if decompression has
// already been requested or the entry is not a blob.
func (pb *Playback) startDecompress(idx int) {
	e := &pb.entries[idx]
	if e.status != nil {
		return
	}

	blob, ok := e.p.(packet.CompressedBlob)
	if !ok {
		return
	}

	st := &blobStatus{done: make(chan struct{})}
	e.status = st

	if !pb.threaded {
		st.packets, st.err = decompressBlob(blob)
		close(st.done)
		return
	}

	go func() {
		if pb.live.Load() {
			st.packets, st.err = decompressBlob(blob)
		} else {
			st.err = curated.Errorf(BrokenPacket, curated.Errorf("playback closed"))
		}
		close(st.done)
	}()
}

// ensureBlob returns the decompressed packets of the blob at the given
// entry, waiting for a background decompression if one is in flight.
func (pb *Playback) ensureBlob(idx int) ([]packet.Packet, error) {
	pb.startDecompress(idx)
	st := pb.entries[idx].status
	<-st.done
	return st.packets, st.err
}

// prefetch begins background decompression of the first blob strictly
// beyond the read cursor.
func (pb *Playback) prefetch() {
	if !pb.threaded {
		return
	}
	for i := pb.nextIdx + 1; i < len(pb.entries); i++ {
		if _, ok := pb.entries[i].p.(packet.CompressedBlob); ok {
			pb.startDecompress(i)
			return
		}
	}
}

// evictCursor drops the decompressed contents of the entry the cursor is on,
// unless the cursor is about to land on it again.
func (pb *Playback) evictCursor(target int) {
	if pb.nextIdx < len(pb.entries) && pb.nextIdx != target {
		pb.entries[pb.nextIdx].status = nil
	}
}

// advance moves the cursor to the next top-level entry, evicting the
// decompressed contents of the entry being left behind.
func (pb *Playback) advance() {
	pb.entries[pb.nextIdx].status = nil
	pb.nextIdx++
	pb.subIdx = 0
	pb.prefetch()
}

// NextPacket returns the next packet in recorded order, descending into
// compressed blobs as it reaches them. At the end of the stream it returns
// nil with no error.
func (pb *Playback) NextPacket() (packet.Packet, error) {
	for pb.nextIdx < len(pb.entries) {
		e := pb.entries[pb.nextIdx]

		if _, ok := e.p.(packet.CompressedBlob); ok {
			packets, err := pb.ensureBlob(pb.nextIdx)
			if err != nil {
				return nil, err
			}
			if pb.subIdx < len(packets) {
				p := packets[pb.subIdx]
				pb.subIdx++
				return p, nil
			}
			pb.advance()
			continue
		}

		p := e.p
		pb.advance()
		return p, nil
	}

	return nil, nil
}

// NearestKeyframe returns the frame of the latest keyframe at or before the
// given frame. The second return value is false if there is no such
// keyframe, which can only happen on a replay with no frame-zero keyframe.
func (pb *Playback) NearestKeyframe(frame uint64) (uint64, bool) {
	i := sort.Search(len(pb.keyframeFrames), func(i int) bool {
		return pb.keyframeFrames[i] > frame
	})
	if i == 0 {
		return 0, false
	}
	return pb.keyframeFrames[i-1], true
}

// GoToKeyframe moves the read cursor to the keyframe on the given frame.
// The keyframe itself is returned so the caller can restore the emulation
// state it carries; the next call to NextPacket yields the packet recorded
// immediately after the keyframe.
//
// If no keyframe exists on exactly that frame, a NoSuchKeyframe error names
// the nearest earlier frame that does have one.
func (pb *Playback) GoToKeyframe(frame uint64) (*packet.Keyframe, error) {
	locs, ok := pb.keyframes[frame]
	if !ok {
		nearest, _ := pb.NearestKeyframe(frame)
		return nil, curated.Errorf(NoSuchKeyframe, frame, nearest)
	}
	loc := locs[0]

	if !loc.blob {
		kf := pb.entries[loc.entry].p.(packet.Keyframe)
		pb.evictCursor(loc.entry)
		pb.nextIdx = loc.entry + 1
		pb.subIdx = 0
		pb.prefetch()
		return &kf, nil
	}

	packets, err := pb.ensureBlob(loc.entry)
	if err != nil {
		return nil, err
	}

	for i, p := range packets {
		if kf, ok := p.(packet.Keyframe); ok && kf.Metadata.ElapsedFrames == frame {
			pb.evictCursor(loc.entry)
			pb.nextIdx = loc.entry
			pb.subIdx = i + 1
			pb.prefetch()
			return &kf, nil
		}
	}

	return nil, curated.Errorf(BrokenPacket, curated.Errorf("keyframe on frame %d listed in blob metadata but not present", frame))
}
