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

package block

import "runtime"

// LeakCheckHook is a hook test code can install to detect ItemBlocks
// that never reach the hand-off point implied by the "owned
// exclusively, moved not shared" contract (ItemBlock's doc comment).
// Nil in production, matching the teacher's own finalizer-based
// RowConsumer leak check.
var LeakCheckHook func(stack []byte, obj any)

func leakCheck(b *ItemBlock) {
	if LeakCheckHook == nil {
		return
	}
	hook := LeakCheckHook
	stk := make([]byte, 1024)
	runtime.Stack(stk, false)
	runtime.SetFinalizer(b, func(x *ItemBlock) {
		hook(stk, x)
	})
}

func noLeakCheck(b *ItemBlock) {
	if LeakCheckHook == nil {
		return
	}
	runtime.SetFinalizer(b, nil)
}
