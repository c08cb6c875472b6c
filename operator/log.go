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

// Errorf is a global diagnostic hook a caller may install (e.g. the
// cluster server binding it to its own structured logger) to capture
// extra context around operator-internal error paths. Nil in
// production by default, so it costs nothing unless installed.
var Errorf func(format string, args ...any)

func errorf(format string, args ...any) {
	if Errorf != nil {
		Errorf(format, args...)
	}
}
