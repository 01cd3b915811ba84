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

package recorder_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/SnowyMouse/supershuckie2/curated"
	"github.com/SnowyMouse/supershuckie2/packet"
	"github.com/SnowyMouse/supershuckie2/recorder"
	"github.com/SnowyMouse/supershuckie2/test"
)

// a 200 frame session with a keyframe every 60 frames, three input changes
// and one speed change. the tiny blob threshold forces a rollover on every
// packet so the result is as many blobs as a session hours long would have.
func recordSession(t *testing.T, set recorder.Settings) []byte {
	t.Helper()

	final := &recorder.BufferSink{}

	rec, err := recorder.NewRecorder(final, recorder.NullSink{}, newTestMetadata(), nil, recorder.InitialConditions{
		Input:     []byte{0x01},
		SaveState: []byte{0xf0, 0x0d},
	}, set)
	test.DemandSuccess(t, err)

	for frame := uint64(1); frame <= 200; frame++ {
		test.DemandSuccess(t, rec.NextFrame())

		switch frame {
		case 25:
			test.DemandSuccess(t, rec.SetInput([]byte{0x02}))
		case 50:
			test.DemandSuccess(t, rec.SetInput([]byte{0x03}))
		case 100:
			test.DemandSuccess(t, rec.SetInput([]byte{0x04}))
			test.DemandSuccess(t, rec.AddBookmark("gym entrance"))
		case 150:
			test.DemandSuccess(t, rec.SetSpeed(512))
		}

		if frame%60 == 0 {
			_, err := rec.InsertKeyframe([]byte{byte(frame)}, frame*256)
			test.DemandSuccess(t, err)
		}
	}

	test.DemandSuccess(t, rec.Close())
	return final.Bytes()
}

// drain every packet from a playback.
func drain(t *testing.T, pb *recorder.Playback) []packet.Packet {
	t.Helper()

	var packets []packet.Packet
	for {
		p, err := pb.NextPacket()
		test.DemandSuccess(t, err)
		if p == nil {
			return packets
		}
		packets = append(packets, p)
	}
}

func TestPlaybackScenario(t *testing.T) {
	data := recordSession(t, recorder.Settings{BlobThreshold: 1})

	pb, err := recorder.NewPlayback(data, false)
	test.DemandSuccess(t, err)

	// the keyframe index is built from blob metadata alone
	kf := pb.Keyframes()
	test.DemandEquality(t, len(kf), 4)
	test.ExpectEquality(t, kf[0].ElapsedFrames, uint64(0))
	test.ExpectEquality(t, kf[1].ElapsedFrames, uint64(60))
	test.ExpectEquality(t, kf[2].ElapsedFrames, uint64(120))
	test.ExpectEquality(t, kf[3].ElapsedFrames, uint64(180))
	test.ExpectEquality(t, pb.TotalFrames(), uint64(180))
	test.ExpectEquality(t, pb.TotalTicks(), uint64(180*256))

	// keyframe metadata reflects the state current when it was captured
	test.ExpectSuccess(t, bytes.Equal(kf[1].Input, []byte{0x03}))
	test.ExpectEquality(t, kf[1].Speed, packet.NormalSpeed)
	test.ExpectSuccess(t, bytes.Equal(kf[2].Input, []byte{0x04}))
	test.ExpectEquality(t, kf[3].Speed, packet.Speed(512))

	bm := pb.Bookmarks()
	test.DemandEquality(t, len(bm), 1)
	test.ExpectEquality(t, bm[0].Name, "gym entrance")
	test.ExpectEquality(t, bm[0].ElapsedFrames, uint64(100))
	test.DemandEquality(t, len(pb.FindBookmark("gym entrance")), 1)
	test.ExpectEquality(t, len(pb.FindBookmark("no such place")), 0)

	// replaying the whole stream reproduces the session exactly
	var frames uint64
	var inputs [][]byte
	var speeds []packet.Speed
	for _, p := range drain(t, pb) {
		switch p := p.(type) {
		case packet.RunFrames:
			frames += p.Frames
		case packet.ChangeInput:
			inputs = append(inputs, p.Data)
		case packet.ChangeSpeed:
			speeds = append(speeds, p.Speed)
		}
	}
	test.ExpectEquality(t, frames, uint64(200))
	test.DemandEquality(t, len(inputs), 3)
	test.ExpectSuccess(t, bytes.Equal(inputs[0], []byte{0x02}))
	test.ExpectSuccess(t, bytes.Equal(inputs[1], []byte{0x03}))
	test.ExpectSuccess(t, bytes.Equal(inputs[2], []byte{0x04}))
	test.DemandEquality(t, len(speeds), 1)
	test.ExpectEquality(t, speeds[0], packet.Speed(512))
}

func TestPlaybackSeek(t *testing.T) {
	data := recordSession(t, recorder.Settings{BlobThreshold: 1})

	pb, err := recorder.NewPlayback(data, false)
	test.DemandSuccess(t, err)

	// seeking to a keyframe returns the keyframe to restore from
	for _, frame := range []uint64{0, 60, 120} {
		kf, err := pb.GoToKeyframe(frame)
		test.DemandSuccess(t, err)
		test.ExpectEquality(t, kf.Metadata.ElapsedFrames, frame)
	}

	// frame 85 has no keyframe; the nearest earlier one is on frame 60
	_, err = pb.GoToKeyframe(85)
	test.ExpectSuccess(t, curated.Is(err, recorder.NoSuchKeyframe))
	nearest, ok := pb.NearestKeyframe(85)
	test.ExpectSuccess(t, ok)
	test.ExpectEquality(t, nearest, uint64(60))

	// the packets after a seek are exactly the packets recorded after the
	// keyframe: the input change on frame 100, the speed change on frame 150
	// and the remaining 140 frames
	kf, err := pb.GoToKeyframe(60)
	test.DemandSuccess(t, err)
	test.ExpectSuccess(t, bytes.Equal(kf.State, []byte{60}))

	var frames uint64
	var inputs [][]byte
	var speeds []packet.Speed
	for _, p := range drain(t, pb) {
		switch p := p.(type) {
		case packet.RunFrames:
			frames += p.Frames
		case packet.ChangeInput:
			inputs = append(inputs, p.Data)
		case packet.ChangeSpeed:
			speeds = append(speeds, p.Speed)
		}
	}
	test.ExpectEquality(t, frames, uint64(140))
	test.DemandEquality(t, len(inputs), 1)
	test.ExpectSuccess(t, bytes.Equal(inputs[0], []byte{0x04}))
	test.DemandEquality(t, len(speeds), 1)

	// seeking backwards after reaching the end works too
	kf, err = pb.GoToKeyframe(0)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, kf.Metadata.ElapsedFrames, uint64(0))
	test.ExpectSuccess(t, bytes.Equal(kf.State, []byte{0xf0, 0x0d}))
}

func TestPlaybackThreadedEquivalence(t *testing.T) {
	data := recordSession(t, recorder.Settings{BlobThreshold: 1})

	pb, err := recorder.NewPlayback(data, false)
	test.DemandSuccess(t, err)
	direct := drain(t, pb)

	pb, err = recorder.NewPlayback(data, false)
	test.DemandSuccess(t, err)
	pb.EnableThreading()
	defer pb.Close()
	threaded := drain(t, pb)

	// background decompression changes nothing about what is read
	test.DemandEquality(t, len(threaded), len(direct))
	for i := range direct {
		if !reflect.DeepEqual(threaded[i], direct[i]) {
			t.Fatalf("packet %d differs between threaded and direct reads", i)
		}
	}
}

func TestPlaybackMinimalReplay(t *testing.T) {
	// a replay closed immediately after the mandatory initial keyframe is
	// valid and seekable to frame zero
	final := &recorder.BufferSink{}
	rec, err := recorder.NewRecorder(final, recorder.NullSink{}, newTestMetadata(), nil, recorder.InitialConditions{
		Input:     []byte{0x01},
		SaveState: []byte{0xaa},
	}, recorder.Settings{})
	test.DemandSuccess(t, err)
	test.DemandSuccess(t, rec.Close())

	pb, err := recorder.NewPlayback(final.Bytes(), false)
	test.DemandSuccess(t, err)

	kf, err := pb.GoToKeyframe(0)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, kf.Metadata.ElapsedFrames, uint64(0))
	test.ExpectSuccess(t, bytes.Equal(kf.State, []byte{0xaa}))

	p, err := pb.NextPacket()
	test.DemandSuccess(t, err)
	test.ExpectSuccess(t, p == nil)
}

func TestPlaybackRequiresLeadingKeyframe(t *testing.T) {
	data := recordSession(t, recorder.Settings{})
	header := data[:recorder.HeaderSize]

	// no packets at all
	_, err := recorder.NewPlayback(header, false)
	test.ExpectSuccess(t, curated.Is(err, recorder.InvalidReplayFile))

	// first packet is not a keyframe
	stream := packet.AppendPacket(nil, packet.RunFrames{Frames: 5})
	_, err = recorder.NewPlayback(append(append([]byte(nil), header...), stream...), false)
	test.ExpectSuccess(t, curated.Is(err, recorder.InvalidReplayFile))

	// a keyframe, but not on frame zero
	stream = packet.AppendPacket(nil, packet.Keyframe{
		Metadata: packet.KeyframeMetadata{
			Input:         []byte{0x01},
			Speed:         packet.NormalSpeed,
			ElapsedFrames: 5,
			ElapsedTicks:  5 * 256,
		},
		State: []byte{0x01},
	})
	_, err = recorder.NewPlayback(append(append([]byte(nil), header...), stream...), false)
	test.ExpectSuccess(t, curated.Is(err, recorder.InvalidReplayFile))

	// structural requirements hold even when tolerating corruption
	_, err = recorder.NewPlayback(header, true)
	test.ExpectSuccess(t, curated.Is(err, recorder.InvalidReplayFile))
}

func TestPlaybackCompressionIntegrity(t *testing.T) {
	data := recordSession(t, recorder.Settings{})

	// locate the compressed bytes of the one blob in the stream and flip a
	// bit in the middle of them
	p, _, err := packet.ReadPacket(data[recorder.HeaderSize:])
	test.DemandSuccess(t, err)
	blob := p.(packet.CompressedBlob)
	off := bytes.Index(data, blob.Data)
	test.DemandSuccess(t, off > 0)

	corrupt := append([]byte(nil), data...)
	corrupt[off+len(blob.Data)/2] ^= 0x10

	// the top-level structure still parses; the damage surfaces when the
	// blob's contents are needed
	pb, err := recorder.NewPlayback(corrupt, false)
	test.DemandSuccess(t, err)
	_, err = pb.NextPacket()
	test.ExpectSuccess(t, curated.Is(err, recorder.BrokenPacket))
}

func TestPlaybackForgedBlobSize(t *testing.T) {
	data := recordSession(t, recorder.Settings{})
	header := data[:recorder.HeaderSize]

	p, _, err := packet.ReadPacket(data[recorder.HeaderSize:])
	test.DemandSuccess(t, err)
	blob := p.(packet.CompressedBlob)

	// a doctored size field must surface as a broken packet when the blob's
	// contents are needed, never as a crash or an enormous allocation
	for _, size := range []uint64{1 << 63, 1 << 40, blob.UncompressedSize * 1000} {
		forged := blob
		forged.UncompressedSize = size
		file := append(append([]byte(nil), header...), packet.AppendPacket(nil, forged)...)

		pb, err := recorder.NewPlayback(file, false)
		test.DemandSuccess(t, err)
		_, err = pb.NextPacket()
		test.ExpectSuccess(t, curated.Is(err, recorder.BrokenPacket))

		// the same forgery reached through the prefetch goroutine
		pb, err = recorder.NewPlayback(file, false)
		test.DemandSuccess(t, err)
		pb.EnableThreading()
		_, err = pb.NextPacket()
		test.ExpectSuccess(t, curated.Is(err, recorder.BrokenPacket))
		pb.Close()
	}
}

func TestPlaybackCorruptionTolerance(t *testing.T) {
	data := recordSession(t, recorder.Settings{BlobThreshold: 1})

	pb, err := recorder.NewPlayback(data, false)
	test.DemandSuccess(t, err)
	want := len(drain(t, pb))

	// an unknown discriminator at the end of the stream
	garbage := append(append([]byte(nil), data...), 0x90, 0xff, 0xff)

	_, err = recorder.NewPlayback(garbage, false)
	test.ExpectSuccess(t, curated.Is(err, recorder.InvalidReplayFile))

	// with tolerance the stream is truncated to the last good packet
	pb, err = recorder.NewPlayback(garbage, true)
	test.DemandSuccess(t, err)
	test.ExpectEquality(t, len(drain(t, pb)), want)

	// a stream cut mid-packet behaves the same way
	truncated := data[:len(data)-3]

	_, err = recorder.NewPlayback(truncated, false)
	test.ExpectSuccess(t, curated.Is(err, recorder.InvalidReplayFile))

	_, err = recorder.NewPlayback(truncated, true)
	test.ExpectSuccess(t, err)
}

func TestPlaybackMetadata(t *testing.T) {
	data := recordSession(t, recorder.Settings{})

	pb, err := recorder.NewPlayback(data, false)
	test.DemandSuccess(t, err)

	m := pb.Metadata()
	test.ExpectEquality(t, m.Console, recorder.ConsoleGameBoy)
	test.ExpectEquality(t, m.ROMName, "POKEMON RED")
	test.ExpectEquality(t, m.CoreName, "supershuckie 2.0.0")
	test.ExpectEquality(t, len(pb.PatchData()), 0)

	test.ExpectEquality(t, len(m.Compare(newTestMetadata())), 0)
}
