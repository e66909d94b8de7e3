package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fgravato/falcon-rtr/pkg/errors"
	"go.uber.org/zap"
)

type batchInitRequest struct {
	HostIDs []string `json:"host_ids"`
}

type batchCommandRequest struct {
	BaseCommand   string   `json:"base_command"`
	CommandString string   `json:"command_string"`
	BatchID       string   `json:"batch_id"`
	OptionalHosts []string `json:"optional_hosts"`
}

type sessionCommandRequest struct {
	BaseCommand   string `json:"base_command"`
	CommandString string `json:"command_string"`
	SessionID     string `json:"session_id"`
	Persist       bool   `json:"persist"`
}

// InitBatchSession opens RTR sessions on hostIDs and returns the full response,
// including the per-host session ids. A response without a batch id is
// ErrEmptyBatchID.
func (c *Client) InitBatchSession(ctx context.Context, hostIDs []string) (*BatchInitResponse, error) {
	if len(hostIDs) == 0 {
		return nil, errors.NewValidationError("host_ids", hostIDs, "at least one host id is required")
	}

	var resp BatchInitResponse
	req := Request{Method: http.MethodPost, Path: BatchInitSessionPath, JSON: batchInitRequest{HostIDs: hostIDs}}
	if err := c.Do(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("initializing batch session: %w", err)
	}
	if resp.BatchID == "" {
		return nil, errors.ErrEmptyBatchID
	}

	c.logger.Info("Initialized batch session",
		zap.String("batch_id", resp.BatchID),
		zap.Int("hosts", len(hostIDs)))

	return &resp, nil
}

// InitSession opens RTR sessions on hostIDs and returns the batch id.
func (c *Client) InitSession(ctx context.Context, hostIDs []string) (string, error) {
	resp, err := c.InitBatchSession(ctx, hostIDs)
	if err != nil {
		return "", err
	}
	return resp.BatchID, nil
}

// RunCommand runs cmd with cmdLine against a batch. hosts optionally limits the
// command to a subset of the batch. The endpoint is picked by Classify(cmd).
func (c *Client) RunCommand(ctx context.Context, batchID, cmd, cmdLine string, hosts []string) (*BatchCommandResponse, error) {
	kind := Classify(cmd)
	body := batchCommandRequest{
		BaseCommand:   cmd,
		CommandString: fmt.Sprintf("%s %s", cmd, cmdLine),
		BatchID:       batchID,
		OptionalHosts: hosts,
	}

	c.logger.Info("Running batch command",
		zap.String("batch_id", batchID),
		zap.String("base_command", cmd),
		zap.Stringer("kind", kind))

	var resp BatchCommandResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: kind.Path(), JSON: body}, &resp); err != nil {
		return nil, fmt.Errorf("running %s command %q: %w", kind, cmd, err)
	}
	return &resp, nil
}

// RunSessionAdminCommand runs an admin command on a single RTR session.
func (c *Client) RunSessionAdminCommand(ctx context.Context, sessionID, cmd, cmdLine string) (*SessionCommandResponse, error) {
	if sessionID == "" {
		return nil, errors.NewValidationError("session_id", sessionID, "session id is required")
	}

	body := sessionCommandRequest{
		BaseCommand:   cmd,
		CommandString: fmt.Sprintf("%s %s", cmd, cmdLine),
		SessionID:     sessionID,
	}

	var resp SessionCommandResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: SessionAdminCommandPath, JSON: body}, &resp); err != nil {
		return nil, fmt.Errorf("running admin command %q: %w", cmd, err)
	}
	return &resp, nil
}
