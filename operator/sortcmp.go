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

import "github.com/dociq/aqlengine/block"

// typeRank orders Value kinds the way AQL's default total order does:
// null < bool < number < string < array < object, with documents
// (Shaped) compared as objects. Range and DocVec are not valid sort
// keys and are ranked last so a misuse doesn't panic.
func typeRank(v block.Value) int {
	switch v.Kind() {
	case block.KindEmpty:
		return 0
	case block.KindJSON:
		switch v.JSON().(type) {
		case nil:
			return 0
		case bool:
			return 1
		case float64:
			return 2
		case string:
			return 3
		case []any:
			return 4
		case map[string]any:
			return 5
		default:
			return 6
		}
	case block.KindShaped:
		return 5
	default:
		return 7
	}
}

// CompareValue is the exported form of compareValue, used outside this
// package by cluster.Gather's sorted-merge mode so both Sort and
// Gather order rows under the same total order.
func CompareValue(a, b block.Value) int { return compareValue(a, b) }

// compareValue implements the value-typed comparison that respects
// the collection tags of document columns (spec.md §4.9): a Shaped
// value compares as its resolved document, a JSON value compares
// natively. It returns -1, 0, or 1.
func compareValue(a, b block.Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		av, bv := jsonBool(a), jsonBool(b)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case 2:
		av, bv := jsonFloat(a), jsonFloat(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case 3:
		av, bv := jsonString(a), jsonString(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case 4:
		return compareArrays(asArray(a), asArray(b))
	case 5:
		return compareObjects(asObject(a), asObject(b))
	default:
		return 0
	}
}

func jsonBool(v block.Value) bool   { b, _ := v.JSON().(bool); return b }
func jsonFloat(v block.Value) float64 {
	f, _ := v.JSON().(float64)
	return f
}
func jsonString(v block.Value) string {
	s, _ := v.JSON().(string)
	return s
}

func asArray(v block.Value) []any {
	if v.Kind() == block.KindJSON {
		a, _ := v.JSON().([]any)
		return a
	}
	return nil
}

func asObject(v block.Value) map[string]any {
	switch v.Kind() {
	case block.KindShaped:
		return v.Shaped().Doc
	case block.KindJSON:
		m, _ := v.JSON().(map[string]any)
		return m
	}
	return nil
}

func compareArrays(a, b []any) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		c := compareValue(block.NewJSON(a[i]), block.NewJSON(b[i]))
		if c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func compareObjects(a, b map[string]any) int {
	// AQL orders objects by number of keys first, then lexically by
	// key, then by value; this is a simplified but stable total order
	// sufficient for sort-stability guarantees.
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		bv, ok := b[k]
		if !ok {
			return 1
		}
		c := compareValue(block.NewJSON(a[k]), block.NewJSON(bv))
		if c != 0 {
			return c
		}
	}
	return 0
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
