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

package main

import (
	"fmt"
	"os"

	"github.com/SnowyMouse/supershuckie2/logger"
	"github.com/SnowyMouse/supershuckie2/modalflag"
	"github.com/SnowyMouse/supershuckie2/packet"
	"github.com/SnowyMouse/supershuckie2/recorder"
	"github.com/SnowyMouse/supershuckie2/version"
)

func main() {
	md := &modalflag.Modes{Output: os.Stdout}
	md.NewArgs(os.Args[1:])
	md.AddSubModes("INFO", "KEYFRAMES", "BOOKMARKS", "PACKETS", "VERSION")

	p, err := md.Parse()
	switch p {
	case modalflag.ParseHelp:
		os.Exit(0)
	case modalflag.ParseError:
		fmt.Printf("* error: %v\n", err)
		os.Exit(10)
	}

	switch md.Mode() {
	case "INFO":
		err = info(md)
	case "KEYFRAMES":
		err = keyframes(md)
	case "BOOKMARKS":
		err = bookmarks(md)
	case "PACKETS":
		err = packets(md)
	case "VERSION":
		ver, rev, release := version.Version()
		fmt.Printf("%s %s\n", version.ApplicationName, ver)
		if !release {
			fmt.Printf("  %s\n", rev)
		}
	}

	if err != nil {
		fmt.Printf("* error in %s mode: %s\n", md.String(), err)
		os.Exit(20)
	}
}

// open the replay file named by the one remaining argument.
func open(md *modalflag.Modes, tolerate bool, log bool) (*recorder.Playback, error) {
	if log {
		logger.SetEcho(os.Stdout)
	} else {
		logger.SetEcho(nil)
	}

	switch len(md.RemainingArgs()) {
	case 0:
		return nil, fmt.Errorf("replay file required for %s mode", md)
	case 1:
		data, err := os.ReadFile(md.GetArg(0))
		if err != nil {
			return nil, err
		}
		return recorder.NewPlayback(data, tolerate)
	default:
		return nil, fmt.Errorf("too many arguments for %s mode", md)
	}
}

func info(md *modalflag.Modes) error {
	md.NewMode()

	tolerate := md.AddBool("tolerate", false, "tolerate a corrupt packet stream")
	log := md.AddBool("log", false, "echo debugging log to stdout")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	pb, err := open(md, *tolerate, *log)
	if err != nil {
		return err
	}

	m := pb.Metadata()
	fmt.Printf("console: %v\n", m.Console)
	fmt.Printf("core: %s\n", m.CoreName)
	fmt.Printf("ROM: %s (%s)\n", m.ROMName, m.ROMFilename)
	fmt.Printf("ROM hash: %v\n", m.ROMHash)
	if !m.BIOSHash.IsZero() {
		fmt.Printf("BIOS hash: %v\n", m.BIOSHash)
	}
	if m.PatchFormat != recorder.PatchNone {
		fmt.Printf("patch: %v (%d bytes, target %v)\n", m.PatchFormat, len(pb.PatchData()), m.PatchTargetHash)
	}
	fmt.Printf("length: %d frames (%d keyframes, %d bookmarks)\n",
		pb.TotalFrames(), len(pb.Keyframes()), len(pb.Bookmarks()))

	return nil
}

func keyframes(md *modalflag.Modes) error {
	md.NewMode()

	tolerate := md.AddBool("tolerate", false, "tolerate a corrupt packet stream")
	log := md.AddBool("log", false, "echo debugging log to stdout")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	pb, err := open(md, *tolerate, *log)
	if err != nil {
		return err
	}

	for _, m := range pb.Keyframes() {
		fmt.Printf("frame %d: speed %.2fx, %d input bytes\n", m.ElapsedFrames, m.Speed.Multiplier(), len(m.Input))
	}

	return nil
}

func bookmarks(md *modalflag.Modes) error {
	md.NewMode()

	tolerate := md.AddBool("tolerate", false, "tolerate a corrupt packet stream")
	log := md.AddBool("log", false, "echo debugging log to stdout")
	find := md.AddString("find", "", "list only bookmarks with this name")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	pb, err := open(md, *tolerate, *log)
	if err != nil {
		return err
	}

	list := pb.Bookmarks()
	if *find != "" {
		list = pb.FindBookmark(*find)
	}
	for _, m := range list {
		fmt.Printf("frame %d: %s\n", m.ElapsedFrames, m.Name)
	}

	return nil
}

func packets(md *modalflag.Modes) error {
	md.NewMode()

	tolerate := md.AddBool("tolerate", false, "tolerate a corrupt packet stream")
	log := md.AddBool("log", false, "echo debugging log to stdout")
	limit := md.AddInt("limit", 0, "stop after this many packets (zero means no limit)")
	from := md.AddUint64("from", 0, "start from the keyframe on this frame (zero means the start of the file)")

	p, err := md.Parse()
	if err != nil || p != modalflag.ParseContinue {
		return err
	}

	pb, err := open(md, *tolerate, *log)
	if err != nil {
		return err
	}

	// decompress the next blob while the current one is printing
	pb.EnableThreading()
	defer pb.Close()

	if *from > 0 {
		if _, err := pb.GoToKeyframe(*from); err != nil {
			return err
		}
	}

	n := 0
	for *limit == 0 || n < *limit {
		pkt, err := pb.NextPacket()
		if err != nil {
			return err
		}
		if pkt == nil {
			break
		}
		n++

		switch pkt := pkt.(type) {
		case packet.RunFrames:
			fmt.Printf("%s %d\n", pkt.Name(), pkt.Frames)
		case packet.ChangeInput:
			fmt.Printf("%s % 02x\n", pkt.Name(), pkt.Data)
		case packet.ChangeSpeed:
			fmt.Printf("%s %.2fx\n", pkt.Name(), pkt.Speed.Multiplier())
		case packet.WriteMemory:
			fmt.Printf("%s %08x % 02x\n", pkt.Name(), pkt.Address, pkt.Data)
		case packet.Keyframe:
			fmt.Printf("%s frame %d (%d state bytes)\n", pkt.Name(), pkt.Metadata.ElapsedFrames, len(pkt.State))
		case packet.Bookmark:
			fmt.Printf("%s frame %d %q\n", pkt.Name(), pkt.Metadata.ElapsedFrames, pkt.Metadata.Name)
		case packet.LoadSaveState:
			fmt.Printf("%s (%d state bytes)\n", pkt.Name(), len(pkt.State))
		default:
			fmt.Println(pkt.Name())
		}
	}

	return nil
}
