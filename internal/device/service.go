package device

import (
	"context"
	"fmt"
	"time"

	"github.com/fgravato/falcon-rtr/internal/api"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Sync modes
const (
	ModeRecent = "recent"
	ModeScroll = "scroll"
)

// StaleAfter is how long a host may go unseen before it counts as stale.
const StaleAfter = 7 * 24 * time.Hour

// Fetcher is the part of the Falcon client the sync needs
type Fetcher interface {
	ListDevices(ctx context.Context) ([]string, error)
	ListDevicesScroll(ctx context.Context) ([]string, error)
	GetDevices(ctx context.Context, ids []string) ([]api.Device, error)
}

// Service defines the device business logic interface
type Service interface {
	Sync(ctx context.Context, scroll bool) (*SyncRun, error)
	GetDevice(ctx context.Context, id string) (*Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
	DeleteDevice(ctx context.Context, id string) error
	GetDevicesByPlatform(ctx context.Context, platform string) ([]Device, error)
	GetDevicesByStatus(ctx context.Context, status string) ([]Device, error)
	FindDevices(ctx context.Context, platform, status string) ([]Device, error)
	GetDeviceStatistics(ctx context.Context) (*Statistics, error)
}

// Statistics represents device statistics
type Statistics struct {
	TotalDevices     int            `json:"total_devices"`
	ByPlatform       map[string]int `json:"by_platform"`
	ByStatus         map[string]int `json:"by_status"`
	ContainedDevices int            `json:"contained_devices"`
	StaleDevices     int            `json:"stale_devices"`
	LastSync         *SyncRun       `json:"last_sync,omitempty"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Options tunes the sync
type Options struct {
	Workers   int
	BatchSize int
	Logger    *zap.Logger
}

// DeviceService implements the Service interface
type DeviceService struct {
	repo      Repository
	fetcher   Fetcher
	workers   int
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new device service. fetcher may be nil when only the
// local inventory is used.
func NewService(repo Repository, fetcher Fetcher, opts Options) *DeviceService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1000
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &DeviceService{
		repo:      repo,
		fetcher:   fetcher,
		workers:   opts.Workers,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Sync pulls host ids and details from Falcon and writes them to the local store.
// Writes are split into batches and saved through a bounded worker pool.
func (s *DeviceService) Sync(ctx context.Context, scroll bool) (*SyncRun, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("sync requires an API client")
	}

	run := &SyncRun{
		ID:        uuid.NewString(),
		Mode:      ModeRecent,
		StartedAt: s.now().UTC(),
	}
	list := s.fetcher.ListDevices
	if scroll {
		run.Mode = ModeScroll
		list = s.fetcher.ListDevicesScroll
	}
	log := s.logger.With(zap.String("sync_id", run.ID), zap.String("mode", run.Mode))

	ids, err := list(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing device ids: %w", err)
	}
	log.Info("Listed devices", zap.Int("count", len(ids)))

	hosts, err := s.fetcher.GetDevices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching device details: %w", err)
	}

	records := make([]Device, len(hosts))
	for i, h := range hosts {
		records[i] = Device{Device: h, LastSynced: run.StartedAt, SyncID: run.ID}
	}

	p := pool.New().WithMaxGoroutines(s.workers).WithErrors()
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		p.Go(func() error {
			if err := s.repo.SaveBatch(ctx, batch); err != nil {
				log.Error("Failed to save device batch", zap.Int("size", len(batch)), zap.Error(err))
				return err
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("saving devices: %w", err)
	}

	run.DeviceCount = len(records)
	run.FinishedAt = s.now().UTC()
	if err := s.repo.SaveSyncRun(ctx, run); err != nil {
		return nil, fmt.Errorf("recording sync run: %w", err)
	}

	log.Info("Sync complete",
		zap.Int("devices", run.DeviceCount),
		zap.Duration("took", run.FinishedAt.Sub(run.StartedAt)))
	return run, nil
}

// GetDevice retrieves a device by id
func (s *DeviceService) GetDevice(ctx context.Context, id string) (*Device, error) {
	if id == "" {
		return nil, fmt.Errorf("device id is required")
	}
	return s.repo.Get(ctx, id)
}

// ListDevices retrieves all devices
func (s *DeviceService) ListDevices(ctx context.Context) ([]Device, error) {
	return s.repo.List(ctx)
}

// DeleteDevice removes a device from the local store
func (s *DeviceService) DeleteDevice(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("device id is required")
	}
	return s.repo.Delete(ctx, id)
}

// GetDevicesByPlatform retrieves devices by platform
func (s *DeviceService) GetDevicesByPlatform(ctx context.Context, platform string) ([]Device, error) {
	if platform == "" {
		return nil, fmt.Errorf("platform is required")
	}
	return s.repo.GetByPlatform(ctx, platform)
}

// GetDevicesByStatus retrieves devices by sensor status
func (s *DeviceService) GetDevicesByStatus(ctx context.Context, status string) ([]Device, error) {
	if status == "" {
		return nil, fmt.Errorf("status is required")
	}
	return s.repo.GetByStatus(ctx, status)
}

// FindDevices filters the local inventory by platform and status. Either may be
// empty; matching is exact.
func (s *DeviceService) FindDevices(ctx context.Context, platform, status string) ([]Device, error) {
	switch {
	case platform == "" && status == "":
		return s.repo.List(ctx)
	case platform == "":
		return s.GetDevicesByStatus(ctx, status)
	}

	devices, err := s.GetDevicesByPlatform(ctx, platform)
	if err != nil || status == "" {
		return devices, err
	}

	matched := devices[:0]
	for _, d := range devices {
		if d.Status == status {
			matched = append(matched, d)
		}
	}
	return matched, nil
}

// GetDeviceStatistics calculates device statistics
func (s *DeviceService) GetDeviceStatistics(ctx context.Context) (*Statistics, error) {
	devices, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	now := s.now().UTC()
	stats := &Statistics{
		TotalDevices: len(devices),
		ByPlatform:   make(map[string]int),
		ByStatus:     make(map[string]int),
		GeneratedAt:  now,
	}

	for _, d := range devices {
		stats.ByPlatform[orUnknown(d.PlatformName)]++
		stats.ByStatus[orUnknown(d.Status)]++

		if d.Status == "contained" {
			stats.ContainedDevices++
		}
		if d.IsStale(now) {
			stats.StaleDevices++
		}
	}

	if run, err := s.repo.LatestSyncRun(ctx); err == nil {
		stats.LastSync = run
	}

	return stats, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
