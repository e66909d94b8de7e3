package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fgravato/falcon-rtr/internal/api"
	"github.com/fgravato/falcon-rtr/internal/database"
	apierrors "github.com/fgravato/falcon-rtr/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.NewStore(database.Config{Path: database.InMemory})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func host(id, platform, status, lastSeen string) api.Device {
	return api.Device{
		DeviceID:     id,
		Hostname:     "host-" + id,
		PlatformName: platform,
		Status:       status,
		LastSeen:     lastSeen,
	}
}

type fakeFetcher struct {
	mu          sync.Mutex
	ids         []string
	hosts       []api.Device
	listErr     error
	recentCalls int
	scrollCalls int
	requested   []string
}

func (f *fakeFetcher) ListDevices(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.ids, f.listErr
}

func (f *fakeFetcher) ListDevicesScroll(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrollCalls++
	return f.ids, f.listErr
}

func (f *fakeFetcher) GetDevices(_ context.Context, ids []string) ([]api.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, ids...)
	return f.hosts, nil
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := NewRepository(newTestStore(t))
	ctx := context.Background()

	d := &Device{Device: host("aid-1", "Windows", "normal", "2026-10-01T10:00:00Z"), SyncID: "s1"}
	require.NoError(t, repo.Save(ctx, d))

	got, err := repo.Get(ctx, "aid-1")
	require.NoError(t, err)
	assert.Equal(t, "host-aid-1", got.Hostname)
	assert.Equal(t, "s1", got.SyncID)

	require.NoError(t, repo.Delete(ctx, "aid-1"))

	_, err = repo.Get(ctx, "aid-1")
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "aid-1"), apierrors.ErrNotFound)
}

func TestRepositoryRejectsMissingID(t *testing.T) {
	repo := NewRepository(newTestStore(t))

	var validationErr *apierrors.ValidationError
	assert.ErrorAs(t, repo.Save(context.Background(), &Device{}), &validationErr)
	assert.ErrorAs(t, repo.SaveBatch(context.Background(), []Device{{}}), &validationErr)
}

func TestRepositoryIndexes(t *testing.T) {
	repo := NewRepository(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveBatch(ctx, []Device{
		{Device: host("a", "Windows", "normal", "")},
		{Device: host("b", "Linux", "contained", "")},
		{Device: host("c", "Windows", "contained", "")},
		{Device: host("d", "Mac", "normal", "")},
	}))
	require.NoError(t, repo.SaveSyncRun(ctx, &SyncRun{ID: "run-1"}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].DeviceID)

	windows, err := repo.GetByPlatform(ctx, "Windows")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, ids(windows))

	contained, err := repo.GetByStatus(ctx, "contained")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, ids(contained))

	none, err := repo.GetByPlatform(ctx, "Solaris")
	require.NoError(t, err)
	assert.Empty(t, none)

	lower, err := repo.GetByPlatform(ctx, "windows")
	require.NoError(t, err)
	assert.Empty(t, lower)
}

func TestRepositoryWritesHonorContext(t *testing.T) {
	repo := NewRepository(newTestStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.SaveBatch(ctx, []Device{{Device: host("a", "Linux", "normal", "")}})
	require.ErrorIs(t, err, context.Canceled)

	_, err = repo.Get(context.Background(), "a")
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestFindDevices(t *testing.T) {
	repo := NewRepository(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveBatch(ctx, []Device{
		{Device: host("a", "Windows", "normal", "")},
		{Device: host("b", "Linux", "contained", "")},
		{Device: host("c", "Windows", "contained", "")},
	}))
	svc := NewService(repo, nil, Options{})

	tests := []struct {
		name     string
		platform string
		status   string
		want     []string
	}{
		{"all", "", "", []string{"a", "b", "c"}},
		{"platform", "Windows", "", []string{"a", "c"}},
		{"status", "", "contained", []string{"b", "c"}},
		{"both", "Windows", "contained", []string{"c"}},
		{"case differs", "WINDOWS", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.FindDevices(ctx, tt.platform, tt.status)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ids(got))
		})
	}
}

func TestLatestSyncRun(t *testing.T) {
	repo := NewRepository(newTestStore(t))
	ctx := context.Background()

	_, err := repo.LatestSyncRun(ctx)
	require.ErrorIs(t, err, apierrors.ErrNotFound)

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSyncRun(ctx, &SyncRun{ID: "old", StartedAt: base}))
	require.NoError(t, repo.SaveSyncRun(ctx, &SyncRun{ID: "new", StartedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.SaveSyncRun(ctx, &SyncRun{ID: "mid", StartedAt: base.Add(time.Minute)}))

	run, err := repo.LatestSyncRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", run.ID)
}

func TestSync(t *testing.T) {
	store := newTestStore(t)
	repo := NewRepository(store)

	var hosts []api.Device
	var hostIDs []string
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("aid-%02d", i)
		hostIDs = append(hostIDs, id)
		hosts = append(hosts, host(id, "Windows", "normal", "2026-10-15T00:00:00Z"))
	}
	fetcher := &fakeFetcher{ids: hostIDs, hosts: hosts}

	svc := NewService(repo, fetcher, Options{Workers: 3, BatchSize: 4})
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	run, err := svc.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, ModeRecent, run.Mode)
	assert.Equal(t, 25, run.DeviceCount)
	assert.Equal(t, 1, fetcher.recentCalls)
	assert.Equal(t, 0, fetcher.scrollCalls)
	assert.Equal(t, hostIDs, fetcher.requested)

	stored, err := svc.ListDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 25)
	for _, d := range stored {
		assert.Equal(t, run.ID, d.SyncID)
		assert.True(t, fixed.Equal(d.LastSynced))
	}

	latest, err := repo.LatestSyncRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
}

func TestSyncScroll(t *testing.T) {
	fetcher := &fakeFetcher{ids: []string{"a"}, hosts: []api.Device{host("a", "Linux", "normal", "")}}
	svc := NewService(NewRepository(newTestStore(t)), fetcher, Options{})

	run, err := svc.Sync(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, ModeScroll, run.Mode)
	assert.Equal(t, 1, fetcher.scrollCalls)
	assert.Equal(t, 0, fetcher.recentCalls)
}

func TestSyncListError(t *testing.T) {
	store := newTestStore(t)
	fetcher := &fakeFetcher{listErr: apierrors.ErrPaginationStalled}
	svc := NewService(NewRepository(store), fetcher, Options{})

	_, err := svc.Sync(context.Background(), false)
	require.ErrorIs(t, err, apierrors.ErrPaginationStalled)

	_, err = NewRepository(store).LatestSyncRun(context.Background())
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

func TestSyncWithoutFetcher(t *testing.T) {
	svc := NewService(NewRepository(newTestStore(t)), nil, Options{})
	_, err := svc.Sync(context.Background(), false)
	assert.Error(t, err)
}

func TestGetDeviceStatistics(t *testing.T) {
	repo := NewRepository(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveBatch(ctx, []Device{
		{Device: host("a", "Windows", "normal", "2026-10-16T08:00:00Z")},
		{Device: host("b", "Windows", "contained", "2026-10-01T08:00:00Z")},
		{Device: host("c", "Linux", "normal", "")},
		{Device: host("d", "", "", "2026-10-15T08:00:00Z")},
	}))

	svc := NewService(repo, nil, Options{})
	svc.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	stats, err := svc.GetDeviceStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalDevices)
	assert.Equal(t, map[string]int{"Windows": 2, "Linux": 1, "unknown": 1}, stats.ByPlatform)
	assert.Equal(t, map[string]int{"normal": 2, "contained": 1, "unknown": 1}, stats.ByStatus)
	assert.Equal(t, 1, stats.ContainedDevices)
	assert.Equal(t, 2, stats.StaleDevices)
	assert.Nil(t, stats.LastSync)
}

func TestServiceValidation(t *testing.T) {
	svc := NewService(NewRepository(newTestStore(t)), nil, Options{})
	ctx := context.Background()

	_, err := svc.GetDevice(ctx, "")
	assert.Error(t, err)
	_, err = svc.GetDevicesByPlatform(ctx, "")
	assert.Error(t, err)
	_, err = svc.GetDevicesByStatus(ctx, "")
	assert.Error(t, err)
	assert.Error(t, svc.DeleteDevice(ctx, ""))

	_, err = svc.GetDevice(ctx, "missing")
	assert.True(t, errors.Is(err, apierrors.ErrNotFound))
}

func ids(devices []Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.DeviceID
	}
	return out
}
