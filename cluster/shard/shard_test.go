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

package shard

import "testing"

type fixedLocator map[string][]string

func (f fixedLocator) ShardKeys(collection string) []string { return f[collection] }

func TestRouteInjectsKeyOnDefaultSharding(t *testing.T) {
	r := NewRouter(fixedLocator{}, "c", 4, 1, 2)
	doc, client, err := r.Route(map[string]any{"v": 1.0})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if _, ok := doc["_key"]; !ok {
		t.Fatalf("want generated _key, got %#v", doc)
	}
	if client < 0 || client >= 4 {
		t.Fatalf("client out of range: %d", client)
	}
}

func TestRouteRejectsExplicitKeyOnNonDefaultSharding(t *testing.T) {
	r := NewRouter(fixedLocator{"c": {"region"}}, "c", 4, 1, 2)
	_, _, err := r.Route(map[string]any{"_key": "x", "region": "eu"})
	if err != ErrKeyNotAllowed {
		t.Fatalf("want ErrKeyNotAllowed, got %v", err)
	}
}

func TestRouteIsDeterministicPerAttributeTuple(t *testing.T) {
	r := NewRouter(fixedLocator{"c": {"region"}}, "c", 8, 5, 9)
	_, c1, err := r.Route(map[string]any{"region": "eu"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	_, c2, err := r.Route(map[string]any{"region": "eu"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("same shard-key attributes routed to different clients: %d vs %d", c1, c2)
	}
}
