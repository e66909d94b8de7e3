package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fgravato/falcon-rtr/pkg/errors"
)

// ListPutFiles returns the ids of every file in the put-file library.
func (c *Client) ListPutFiles(ctx context.Context) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: PutFilesQueriesPath}, &resp); err != nil {
		return nil, fmt.Errorf("listing put-files: %w", err)
	}
	return &resp, nil
}

// GetPutFiles returns put-file metadata for ids.
func (c *Client) GetPutFiles(ctx context.Context, ids []string) (*PutFilesResponse, error) {
	if len(ids) == 0 {
		return nil, errors.NewValidationError("ids", ids, "at least one put-file id is required")
	}

	var resp PutFilesResponse
	req := Request{Method: http.MethodGet, Path: PutFilesEntitiesPath, Query: url.Values{"ids": ids}}
	if err := c.Do(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("getting put-files: %w", err)
	}
	return &resp, nil
}

// ListScripts returns the ids of every custom script.
func (c *Client) ListScripts(ctx context.Context) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: ScriptsQueriesPath}, &resp); err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	return &resp, nil
}

// GetScripts returns the scripts for ids.
func (c *Client) GetScripts(ctx context.Context, ids []string) (*ScriptsResponse, error) {
	if len(ids) == 0 {
		return nil, errors.NewValidationError("ids", ids, "at least one script id is required")
	}

	var resp ScriptsResponse
	req := Request{Method: http.MethodGet, Path: ScriptsEntitiesPath, Query: url.Values{"ids": ids}}
	if err := c.Do(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("getting scripts: %w", err)
	}
	return &resp, nil
}
