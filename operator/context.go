// Copyright (C) 2026 dociq, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package operator

import (
	"sync/atomic"
)

// Stats holds the delta-diffable query statistics exposed by §6.
// Remote sends deltas so the caller can accumulate without double-
// counting; Add does the accumulation on both sides of that wire.
type Stats struct {
	ScannedFull     int64
	ScannedIndex    int64
	Filtered        int64
	WritesExecuted  int64
	WritesIgnored   int64
	FullCount       int64
}

// Add accumulates a delta into s.
func (s *Stats) Add(delta Stats) {
	s.ScannedFull += delta.ScannedFull
	s.ScannedIndex += delta.ScannedIndex
	s.Filtered += delta.Filtered
	s.WritesExecuted += delta.WritesExecuted
	s.WritesIgnored += delta.WritesIgnored
	s.FullCount += delta.FullCount
}

// Sub returns the element-wise difference s - prior, for computing a
// delta to ship over the cluster RPC transport.
func (s Stats) Sub(prior Stats) Stats {
	return Stats{
		ScannedFull:    s.ScannedFull - prior.ScannedFull,
		ScannedIndex:   s.ScannedIndex - prior.ScannedIndex,
		Filtered:       s.Filtered - prior.Filtered,
		WritesExecuted: s.WritesExecuted - prior.WritesExecuted,
		WritesIgnored:  s.WritesIgnored - prior.WritesIgnored,
		FullCount:      s.FullCount - prior.FullCount,
	}
}

// KillSwitch is the per-query cancellation flag checked at block
// boundaries by throwIfKilled (§5). It is shared by every operator
// instance of one query.
type KillSwitch struct {
	killed int32
}

// Kill marks the query as killed; subsequent throwIfKilled calls from
// any operator in the query will return ErrQueryKilled.
func (k *KillSwitch) Kill() { atomic.StoreInt32(&k.killed, 1) }

// Killed reports whether Kill has been called.
func (k *KillSwitch) Killed() bool { return atomic.LoadInt32(&k.killed) != 0 }

func throwIfKilled(k *KillSwitch) error {
	if k != nil && k.Killed() {
		return ErrQueryKilled
	}
	return nil
}

// Warnings accumulates non-fatal diagnostics produced during
// execution. Its only source in this module is cluster.Remote's
// Shutdown, which adds the warnings a peer returns in its shutdown
// response; local operators (Calculation, the mutation operators) add
// none. See SPEC_FULL.md §5 ("Shutdown warning accumulation").
type Warnings struct {
	messages []string
}

// Add appends a warning message.
func (w *Warnings) Add(msg string) { w.messages = append(w.messages, msg) }

// All returns every warning recorded so far, in order.
func (w *Warnings) All() []string { return w.messages }

// Context carries everything shared, read-only or atomically shared,
// among every operator instance of one running query: the kill
// switch, the stats accumulator, the warnings list, and a scripting-
// runtime capability handle for expression evaluation that needs one
// (§4.7, §9 "Global V8 isolate reliance -> explicit capability").
type Context struct {
	Kill     *KillSwitch
	Stats    *Stats
	Warnings *Warnings
	Runtime  ScriptRuntime
}

// NewContext builds a fresh per-query Context.
func NewContext(rt ScriptRuntime) *Context {
	return &Context{
		Kill:     &KillSwitch{},
		Stats:    &Stats{},
		Warnings: &Warnings{},
		Runtime:  rt,
	}
}

// ThrowIfKilled is the gate every operator calls at the start of
// GetSome/SkipSome and between expensive inner loops.
func (c *Context) ThrowIfKilled() error {
	if c == nil {
		return nil
	}
	return throwIfKilled(c.Kill)
}

// ScriptRuntime is the explicit capability handle expressions that
// require a scripting runtime (user-defined functions, etc.) must
// enter on use and exit on every return path, including exceptions.
// A nil ScriptRuntime means no expression in the plan needs one.
type ScriptRuntime interface {
	Enter() error
	Exit()
	// InvalidateOnExit reports whether expressions must additionally
	// invalidate themselves on exit, which is required for a
	// clustered instance so worker threads can reuse expression
	// objects safely (§4.7).
	InvalidateOnExit() bool
}
