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
	"github.com/SnowyMouse/supershuckie2/curated"
	"github.com/SnowyMouse/supershuckie2/packet"
)

// length of the NonBlocking command queue. sends block once this many
// operations are waiting, which only happens if the sink is pathologically
// slower than the emulation loop
const commandQueueLen = 4096

// NonBlocking drives a Recorder from a dedicated goroutine so that the
// emulation loop never waits on sink I/O. Operations are queued and applied
// in the order they were called; the resulting stream is identical to the
// one a direct Recorder would produce.
//
// Operations are fire-and-forget. Errors from the underlying Recorder are
// retrieved with PollError. Once an error has occurred the Recorder is
// poisoned and every queued operation after the failing one reports
// Poisoned.
//
// NonBlocking methods must be called from a single goroutine.
type NonBlocking struct {
	rec    *Recorder
	cmds   chan func(*Recorder) error
	errs   chan error
	done   chan struct{}
	closed bool
}

// NewNonBlocking wraps a Recorder. The wrapper takes sole ownership: the
// Recorder must not be used directly afterwards.
func NewNonBlocking(rec *Recorder) *NonBlocking {
	nb := &NonBlocking{
		rec:  rec,
		cmds: make(chan func(*Recorder) error, commandQueueLen),
		errs: make(chan error, commandQueueLen),
		done: make(chan struct{}),
	}
	go nb.run()
	return nb
}

func (nb *NonBlocking) run() {
	defer close(nb.done)
	for f := range nb.cmds {
		if err := f(nb.rec); err != nil {
			select {
			case nb.errs <- err:
			default:
				// the error queue is full and nobody is polling. drop rather
				// than stall the worker; the stream is poisoned anyway
			}
		}
	}
}

func (nb *NonBlocking) send(f func(*Recorder) error) {
	if nb.closed {
		select {
		case nb.errs <- curated.Errorf(StreamClosed):
		default:
		}
		return
	}
	nb.cmds <- f
}

// PollError returns a queued error from the underlying Recorder, or nil if
// none is waiting. It never blocks.
func (nb *NonBlocking) PollError() error {
	select {
	case err := <-nb.errs:
		return err
	default:
		return nil
	}
}

// NextFrame queues Recorder.NextFrame.
func (nb *NonBlocking) NextFrame() {
	nb.send(func(rec *Recorder) error {
		return rec.NextFrame()
	})
}

// SetInput queues Recorder.SetInput. The input bytes are copied before
// queueing so the caller may reuse the buffer.
func (nb *NonBlocking) SetInput(input []byte) {
	input = append([]byte(nil), input...)
	nb.send(func(rec *Recorder) error {
		return rec.SetInput(input)
	})
}

// SetSpeed queues Recorder.SetSpeed.
func (nb *NonBlocking) SetSpeed(speed packet.Speed) {
	nb.send(func(rec *Recorder) error {
		return rec.SetSpeed(speed)
	})
}

// WriteMemory queues Recorder.WriteMemory. The data bytes are copied before
// queueing so the caller may reuse the buffer.
func (nb *NonBlocking) WriteMemory(address uint64, data []byte) {
	data = append([]byte(nil), data...)
	nb.send(func(rec *Recorder) error {
		return rec.WriteMemory(address, data)
	})
}

// ResetConsole queues Recorder.ResetConsole.
func (nb *NonBlocking) ResetConsole() {
	nb.send(func(rec *Recorder) error {
		return rec.ResetConsole()
	})
}

// LoadSaveState queues Recorder.LoadSaveState. The state bytes are copied
// before queueing so the caller may reuse the buffer.
func (nb *NonBlocking) LoadSaveState(state []byte) {
	state = append([]byte(nil), state...)
	nb.send(func(rec *Recorder) error {
		return rec.LoadSaveState(state)
	})
}

// AddBookmark queues Recorder.AddBookmark.
func (nb *NonBlocking) AddBookmark(name string) {
	nb.send(func(rec *Recorder) error {
		return rec.AddBookmark(name)
	})
}

// InsertKeyframe queues Recorder.InsertKeyframe. The state bytes are copied
// before queueing so the caller may reuse the buffer.
func (nb *NonBlocking) InsertKeyframe(state []byte, elapsedTicks uint64) {
	state = append([]byte(nil), state...)
	nb.send(func(rec *Recorder) error {
		_, err := rec.InsertKeyframe(state, elapsedTicks)
		return err
	})
}

// Close waits for every queued operation to be applied, closes the
// underlying Recorder and stops the worker goroutine. Unlike the other
// methods, Close blocks until the stream is finished.
func (nb *NonBlocking) Close() error {
	if nb.closed {
		return curated.Errorf(StreamClosed)
	}
	nb.closed = true

	close(nb.cmds)
	<-nb.done

	return nb.rec.Close()
}
