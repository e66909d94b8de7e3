package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fgravato/falcon-rtr/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DevicePageSize is the limit sent on device listing pages.
	DevicePageSize = 5000
	// DeviceChunkSize is the maximum number of ids per device entities request.
	DeviceChunkSize = 100
	// RecentWindow bounds ListDevices to hosts seen this recently.
	RecentWindow = 24 * time.Hour

	lastSeenLayout = "2006-01-02T15:04:05Z"
)

// ListDevices returns the ids of all hosts seen within the last 24 hours.
func (c *Client) ListDevices(ctx context.Context) ([]string, error) {
	lastSeen := c.now().UTC().Add(-RecentWindow)
	filter := fmt.Sprintf("last_seen:>='%s'", lastSeen.Format(lastSeenLayout))

	ids, err := c.listDeviceIDs(ctx, DevicesQueriesPath, filter, "0")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	return ids, nil
}

// ListDevicesScroll returns the ids of every host using the scroll endpoint.
// The first request carries no offset; later ones send back the server's cursor.
func (c *Client) ListDevicesScroll(ctx context.Context) ([]string, error) {
	ids, err := c.listDeviceIDs(ctx, DevicesScrollPath, "", "")
	if err != nil {
		return nil, fmt.Errorf("listing devices (scroll): %w", err)
	}
	return ids, nil
}

// listDeviceIDs pages through a device query endpoint until the reported
// total has been accumulated. An empty offset is left off the request. A page
// that adds nothing before the total is reached returns ErrPaginationStalled.
func (c *Client) listDeviceIDs(ctx context.Context, path, filter, offset string) ([]string, error) {
	var ids []string

	for page := 0; ; page++ {
		query := url.Values{}
		if filter != "" {
			query.Set("filter", filter)
		}
		query.Set("limit", strconv.Itoa(DevicePageSize))
		if offset != "" {
			query.Set("offset", offset)
		}

		var resp QueryResponse
		if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, &resp); err != nil {
			return nil, err
		}

		total := 0
		var cursor Cursor
		if resp.Meta.Pagination != nil {
			total = resp.Meta.Pagination.Total
			cursor = resp.Meta.Pagination.Offset
		}

		ids = append(ids, resp.Resources...)

		c.logger.Debug("Fetched device page",
			zap.String("path", path),
			zap.Int("page", page),
			zap.Int("page_count", len(resp.Resources)),
			zap.Int("accumulated", len(ids)),
			zap.Int("total", total))

		if len(ids) >= total {
			return ids, nil
		}
		if len(resp.Resources) == 0 {
			return nil, fmt.Errorf("%w: have %d of %d after %d pages", errors.ErrPaginationStalled, len(ids), total, page+1)
		}

		offset = nextOffset(offset, cursor)
	}
}

// nextOffset advances a numeric offset by one page, or follows an opaque scroll cursor.
func nextOffset(current string, cursor Cursor) string {
	if cursor != "" && !cursor.Numeric() {
		return string(cursor)
	}
	n, err := strconv.Atoi(current)
	if err != nil {
		n = 0
	}
	return strconv.Itoa(n + DevicePageSize)
}

// GetDevices fetches host details for ids, DeviceChunkSize ids per request,
// and returns them in input chunk order.
func (c *Client) GetDevices(ctx context.Context, ids []string) ([]Device, error) {
	devices := make([]Device, 0, len(ids))

	for i, ch := range chunk(ids, DeviceChunkSize) {
		query := url.Values{"ids": ch}

		var resp DevicesResponse
		if err := c.Do(ctx, Request{Method: http.MethodGet, Path: DevicesEntitiesPath, Query: query}, &resp); err != nil {
			return nil, fmt.Errorf("getting devices chunk %d: %w", i, err)
		}
		devices = append(devices, resp.Resources...)
	}

	return devices, nil
}

// chunk splits items into consecutive slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
