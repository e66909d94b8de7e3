package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fgravato/falcon-rtr/internal/api"
	"github.com/fgravato/falcon-rtr/internal/database"
	apierrors "github.com/fgravato/falcon-rtr/pkg/errors"
	"github.com/tidwall/buntdb"
)

// Device is a Falcon host as stored in the local inventory
type Device struct {
	api.Device
	LastSynced time.Time `json:"last_synced"`
	SyncID     string    `json:"sync_id"`
}

// LastSeenAt parses last_seen. ok is false when it is missing or malformed.
func (d Device) LastSeenAt() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, d.LastSeen)
	return t, err == nil
}

// IsStale reports whether the host has not been seen within StaleAfter.
// Hosts with a missing or unparseable last_seen are stale.
func (d Device) IsStale(now time.Time) bool {
	seen, ok := d.LastSeenAt()
	return !ok || now.Sub(seen) > StaleAfter
}

// SyncRun records one inventory sync
type SyncRun struct {
	ID          string    `json:"id"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DeviceCount int       `json:"device_count"`
}

// Repository defines the interface for device data operations
type Repository interface {
	Save(ctx context.Context, device *Device) error
	SaveBatch(ctx context.Context, devices []Device) error
	Get(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Delete(ctx context.Context, id string) error
	GetByPlatform(ctx context.Context, platform string) ([]Device, error)
	GetByStatus(ctx context.Context, status string) ([]Device, error)
	SaveSyncRun(ctx context.Context, run *SyncRun) error
	LatestSyncRun(ctx context.Context) (*SyncRun, error)
}

// Store implements the Repository interface
type Store struct {
	db DB
}

// DB interface defines the required database methods
type DB interface {
	View(fn func(tx *buntdb.Tx) error) error
	Update(fn func(tx *buntdb.Tx) error) error
}

// NewRepository creates a new device repository
func NewRepository(db DB) Repository {
	return &Store{db: db}
}

func deviceKey(id string) string {
	return database.DevicePrefix + id
}

// Save stores a device, replacing any previous record with the same id
func (s *Store) Save(ctx context.Context, device *Device) error {
	if device == nil || device.DeviceID == "" {
		return apierrors.NewValidationError("device_id", "", "device id is required")
	}
	data, err := json.Marshal(device)
	if err != nil {
		return fmt.Errorf("marshaling device: %w", err)
	}

	return database.WithTransaction(ctx, s.db, func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(deviceKey(device.DeviceID), string(data), nil); err != nil {
			return fmt.Errorf("saving device: %w", err)
		}
		return nil
	})
}

// SaveBatch stores devices in a single transaction
func (s *Store) SaveBatch(ctx context.Context, devices []Device) error {
	if len(devices) == 0 {
		return nil
	}

	values := make(map[string]string, len(devices))
	for i := range devices {
		if devices[i].DeviceID == "" {
			return apierrors.NewValidationError("device_id", "", fmt.Sprintf("device %d has no id", i))
		}
		data, err := json.Marshal(&devices[i])
		if err != nil {
			return fmt.Errorf("marshaling device %s: %w", devices[i].DeviceID, err)
		}
		values[deviceKey(devices[i].DeviceID)] = string(data)
	}

	return database.WithTransaction(ctx, s.db, func(tx *buntdb.Tx) error {
		for key, val := range values {
			if _, _, err := tx.Set(key, val, nil); err != nil {
				return fmt.Errorf("saving %s: %w", key, err)
			}
		}
		return nil
	})
}

// Get retrieves a device by id
func (s *Store) Get(ctx context.Context, id string) (*Device, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		var device Device
		err := s.db.View(func(tx *buntdb.Tx) error {
			val, err := tx.Get(deviceKey(id))
			if err != nil {
				if errors.Is(err, buntdb.ErrNotFound) {
					return fmt.Errorf("device %s: %w", id, apierrors.ErrNotFound)
				}
				return fmt.Errorf("getting device: %w", err)
			}
			return json.Unmarshal([]byte(val), &device)
		})
		if err != nil {
			return nil, err
		}
		return &device, nil
	}
}

// List retrieves all devices ordered by id
func (s *Store) List(ctx context.Context) ([]Device, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		var devices []Device
		err := s.db.View(func(tx *buntdb.Tx) error {
			var decodeErr error
			err := tx.AscendKeys(database.DevicePrefix+"*", func(key, value string) bool {
				var device Device
				if decodeErr = json.Unmarshal([]byte(value), &device); decodeErr != nil {
					decodeErr = fmt.Errorf("decoding %s: %w", key, decodeErr)
					return false
				}
				devices = append(devices, device)
				return true
			})
			if err != nil {
				return err
			}
			return decodeErr
		})
		if err != nil {
			return nil, fmt.Errorf("listing devices: %w", err)
		}
		return devices, nil
	}
}

// Delete removes a device
func (s *Store) Delete(ctx context.Context, id string) error {
	return database.WithTransaction(ctx, s.db, func(tx *buntdb.Tx) error {
		if _, err := tx.Delete(deviceKey(id)); err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return fmt.Errorf("device %s: %w", id, apierrors.ErrNotFound)
			}
			return fmt.Errorf("deleting device: %w", err)
		}
		return nil
	})
}

// GetByPlatform retrieves devices by platform name using the platform index
func (s *Store) GetByPlatform(ctx context.Context, platform string) ([]Device, error) {
	devices, err := s.byIndex(ctx, database.IndexDevicePlatform, "platform_name", platform)
	if err != nil {
		return nil, fmt.Errorf("getting devices by platform: %w", err)
	}
	return devices, nil
}

// GetByStatus retrieves devices by sensor status using the status index
func (s *Store) GetByStatus(ctx context.Context, status string) ([]Device, error) {
	devices, err := s.byIndex(ctx, database.IndexDeviceStatus, "status", status)
	if err != nil {
		return nil, fmt.Errorf("getting devices by status: %w", err)
	}
	return devices, nil
}

func (s *Store) byIndex(ctx context.Context, index, field, value string) ([]Device, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	pivot, err := json.Marshal(map[string]string{field: value})
	if err != nil {
		return nil, err
	}

	var devices []Device
	err = s.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendEqual(index, string(pivot), func(key, val string) bool {
			var device Device
			if decodeErr = json.Unmarshal([]byte(val), &device); decodeErr != nil {
				decodeErr = fmt.Errorf("decoding %s: %w", key, decodeErr)
				return false
			}
			devices = append(devices, device)
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	return devices, err
}

// SaveSyncRun stores a sync run record
func (s *Store) SaveSyncRun(ctx context.Context, run *SyncRun) error {
	if run == nil || run.ID == "" {
		return apierrors.NewValidationError("id", "", "sync run id is required")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling sync run: %w", err)
	}
	return database.WithTransaction(ctx, s.db, func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(database.SyncRunPrefix+run.ID, string(data), nil)
		return err
	})
}

// LatestSyncRun returns the most recently started sync run
func (s *Store) LatestSyncRun(ctx context.Context) (*SyncRun, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var latest *SyncRun
	err := s.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendKeys(database.SyncRunPrefix+"*", func(key, val string) bool {
			var run SyncRun
			if decodeErr = json.Unmarshal([]byte(val), &run); decodeErr != nil {
				decodeErr = fmt.Errorf("decoding %s: %w", key, decodeErr)
				return false
			}
			if latest == nil || run.StartedAt.After(latest.StartedAt) {
				latest = &run
			}
			return true
		})
		if err != nil {
			return err
		}
		return decodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("reading sync runs: %w", err)
	}
	if latest == nil {
		return nil, fmt.Errorf("sync run: %w", apierrors.ErrNotFound)
	}
	return latest, nil
}
