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

// Package client implements the HTTP caller side of the cluster-peer
// RPC table (spec.md §6), the counterpart of cluster/server. It is
// consumed by cluster.Remote, which turns each Operator method call
// into exactly one HTTP request.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/cluster/rpcproto"
	"github.com/dociq/aqlengine/cluster/wire"
)

// DefaultTimeout is spec.md §6's default RPC timeout: 3600s.
const DefaultTimeout = 3600 * time.Second

// ErrClusterConnectionLost and ErrClusterTimeout are the §7 error
// kinds a Client call can raise; ErrClusterAqlCommunication covers
// every other transport-layer failure (bad status, malformed body).
var (
	ErrClusterConnectionLost   = fmt.Errorf("cluster/client: connection lost")
	ErrClusterTimeout          = fmt.Errorf("cluster/client: request timed out")
	ErrClusterAqlCommunication = fmt.Errorf("cluster/client: communication error")
)

// ErrQueryNotFound mirrors server.ErrQueryNotFound's wire text;
// Client matches a 404 error body against it so Shutdown can treat it
// as the tolerated "peer already tore down" case (spec.md §7).
var ErrQueryNotFound = fmt.Errorf("cluster/server: query not found")

// Client calls one peer's cluster RPC endpoints for one queryId.
type Client struct {
	HTTP     *http.Client
	BaseURL  string // e.g. "https://peer:8080"
	Vocbase  string
	QueryID  string
	ShardID  string // sent as the Shard-Id header when non-empty
	Timeout  time.Duration
}

// New builds a Client with spec.md §6's default timeout.
func New(baseURL, vocbase, queryID, shardID string) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: DefaultTimeout},
		BaseURL: baseURL,
		Vocbase: vocbase,
		QueryID: queryID,
		ShardID: shardID,
		Timeout: DefaultTimeout,
	}
}

func (c *Client) url(op string) string {
	return fmt.Sprintf("%s/_db/%s/_api/aql/%s/%s", c.BaseURL, c.Vocbase, op, c.QueryID)
}

func (c *Client) do(ctx context.Context, method, op string, body, out any) error {
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrClusterAqlCommunication, err)
		}
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(op), rdr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrClusterAqlCommunication, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ShardID != "" {
		req.Header.Set("Shard-Id", c.ShardID)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ErrClusterTimeout
		}
		return fmt.Errorf("%w: %v", ErrClusterConnectionLost, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		var eb rpcproto.ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Error == ErrQueryNotFound.Error() {
			return ErrQueryNotFound
		}
		return fmt.Errorf("%w: %s", ErrClusterAqlCommunication, eb.Error)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: unexpected status %d", ErrClusterAqlCommunication, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrClusterAqlCommunication, err)
	}
	return nil
}

// InitializeCursor calls PUT .../initializeCursor.
func (c *Client) InitializeCursor(ctx context.Context, items *rpcproto.InitializeCursorRequest) error {
	var resp rpcproto.InitializeCursorResponse
	if err := c.do(ctx, http.MethodPut, "initializeCursor", items, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("cluster/client: initializeCursor: %s", resp.Error)
	}
	return nil
}

// GetSome calls PUT .../getSome and returns the undecoded response;
// DecodeBlock turns its block into an ItemBlock.
func (c *Client) GetSome(ctx context.Context, atLeast, atMost int) (*rpcproto.GetSomeResponse, error) {
	var resp rpcproto.GetSomeResponse
	req := rpcproto.GetSomeRequest{AtLeast: atLeast, AtMost: atMost}
	if err := c.do(ctx, http.MethodPut, "getSome", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("cluster/client: getSome: %s", resp.Error)
	}
	return &resp, nil
}

// SkipSome calls PUT .../skipSome.
func (c *Client) SkipSome(ctx context.Context, atLeast, atMost int) (*rpcproto.SkipSomeResponse, error) {
	var resp rpcproto.SkipSomeResponse
	req := rpcproto.SkipSomeRequest{AtLeast: atLeast, AtMost: atMost}
	if err := c.do(ctx, http.MethodPut, "skipSome", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("cluster/client: skipSome: %s", resp.Error)
	}
	return &resp, nil
}

// HasMore calls GET .../hasMore.
func (c *Client) HasMore(ctx context.Context) (bool, error) {
	var resp rpcproto.HasMoreResponse
	if err := c.do(ctx, http.MethodGet, "hasMore", nil, &resp); err != nil {
		return false, err
	}
	if resp.Error != "" {
		return false, fmt.Errorf("cluster/client: hasMore: %s", resp.Error)
	}
	return resp.HasMore, nil
}

// Remaining calls GET .../remaining.
func (c *Client) Remaining(ctx context.Context) (int64, bool, error) {
	var resp rpcproto.RemainingResponse
	if err := c.do(ctx, http.MethodGet, "remaining", nil, &resp); err != nil {
		return 0, false, err
	}
	if resp.Error != "" {
		return 0, false, fmt.Errorf("cluster/client: remaining: %s", resp.Error)
	}
	return resp.Remaining, resp.Known, nil
}

// Shutdown calls PUT .../shutdown. ErrQueryNotFound is swallowed here
// too (a second convenience layer over cluster.Remote's own handling)
// since a caller may use Client directly without going through Remote.
func (c *Client) Shutdown(ctx context.Context, code int) ([]string, error) {
	var resp rpcproto.ShutdownResponse
	req := rpcproto.ShutdownRequest{Code: code}
	err := c.do(ctx, http.MethodPut, "shutdown", req, &resp)
	if err == ErrQueryNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("cluster/client: shutdown: %s", resp.Error)
	}
	return resp.Warnings, nil
}

// DecodeBlock is a thin re-export so callers of GetSome don't need to
// import cluster/wire directly just to decode the response body.
func DecodeBlock(resp *rpcproto.GetSomeResponse) (*block.ItemBlock, error) {
	if resp.Exhausted {
		return nil, nil
	}
	return wire.Decode(resp.Block)
}
