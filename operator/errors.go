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

import "errors"

// Error kinds named in spec.md §7. Sentinel values so callers can use
// errors.Is; operators that need structured context wrap these with
// fmt.Errorf("%w: ...", ErrXxx).
var (
	// ErrQueryKilled is raised by the throwIfKilled gate when the
	// containing query has been marked killed. It propagates out of
	// any operator unconditionally.
	ErrQueryKilled = errors.New("operator: query killed")

	// ErrOutOfMemory is fatal to the query.
	ErrOutOfMemory = errors.New("operator: out of memory")

	// ErrArrayExpected is raised by EnumerateList when asked to
	// iterate a non-array JSON value.
	ErrArrayExpected = errors.New("operator: array expected")

	// ErrIndexNotFound is raised by IndexRange when it opens a clause
	// against an index handle of no recognized kind.
	ErrIndexNotFound = errors.New("operator: index not found")

	// ErrInternal is reserved for invariant violations that indicate
	// a bug in the engine rather than a query-time condition.
	ErrInternal = errors.New("operator: internal error")
)
