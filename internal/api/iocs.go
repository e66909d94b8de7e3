package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fgravato/falcon-rtr/pkg/errors"
	"go.uber.org/zap"
)

const (
	// IOCChunkSize is the number of indicators submitted per request.
	IOCChunkSize = 200
	// IOCPolicy is the action applied to every uploaded indicator.
	IOCPolicy = "detect"
)

// IOC is a typed indicator value, e.g. {"sha256", "<hash>"} or {"domain", "evil.example"}.
type IOC struct {
	Type  string
	Value string
}

// IOCOptions are applied to every indicator of an upload.
type IOCOptions struct {
	ShareLevel     string
	ExpirationDays int
	Source         string
	Description    string
}

// UploadIOCs submits iocs in chunks of IOCChunkSize and returns the created
// indicators in submission order.
func (c *Client) UploadIOCs(ctx context.Context, iocs []IOC, opts IOCOptions) ([]Indicator, error) {
	indicators := make([]Indicator, 0, len(iocs))
	for i, ioc := range iocs {
		if ioc.Type == "" || ioc.Value == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("iocs[%d]", i), ioc, "type and value are required")
		}
		indicators = append(indicators, Indicator{
			Type:           ioc.Type,
			Value:          ioc.Value,
			Policy:         IOCPolicy,
			ShareLevel:     opts.ShareLevel,
			ExpirationDays: opts.ExpirationDays,
			Source:         opts.Source,
			Description:    opts.Description,
		})
	}

	var created []Indicator
	for i, ch := range chunk(indicators, IOCChunkSize) {
		var resp IndicatorsResponse
		if err := c.Do(ctx, Request{Method: http.MethodPost, Path: IOCsEntitiesPath, JSON: ch}, &resp); err != nil {
			return nil, fmt.Errorf("uploading IOC chunk %d: %w", i, err)
		}
		created = append(created, resp.Resources...)

		c.logger.Info("Uploaded IOC chunk",
			zap.Int("chunk", i),
			zap.Int("submitted", len(ch)),
			zap.Int("accepted", len(resp.Resources)))
	}

	return created, nil
}
