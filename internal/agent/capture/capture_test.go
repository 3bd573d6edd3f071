package capture

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/herdworks/fieldsync/internal/agent/api"
	"github.com/herdworks/fieldsync/internal/agent/connectivity"
	"github.com/herdworks/fieldsync/internal/agent/store"
	"github.com/herdworks/fieldsync/internal/database"
	"github.com/herdworks/fieldsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHerd struct {
	animals    map[string]*models.Animal // keyed by tag and barcode
	lookupErr  error
	postErr    error
	postCalls  int
	listActive []*models.Animal
	listErr    error
}

func (h *fakeHerd) Lookup(ctx context.Context, code string) (*models.Animal, error) {
	if h.lookupErr != nil {
		return nil, h.lookupErr
	}
	if a, ok := h.animals[code]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("lookup %s: %w", code, api.ErrNotFound)
}

func (h *fakeHerd) ListActive(ctx context.Context) ([]*models.Animal, error) {
	if h.listErr != nil {
		return nil, h.listErr
	}
	return h.listActive, nil
}

func (h *fakeHerd) PostRecord(ctx context.Context, recordType models.RecordType, payload interface{}) error {
	h.postCalls++
	return h.postErr
}

type fakeConnectivity struct {
	mode     connectivity.Mode
	failures int
}

func (c *fakeConnectivity) Mode() connectivity.Mode { return c.mode }
func (c *fakeConnectivity) ReportFailure()          { c.failures++; c.mode = connectivity.Offline }

func newTestStore(t *testing.T) (*sql.DB, *store.Queue, *store.Cache) {
	t.Helper()
	db, err := database.NewSQLite(t.TempDir())
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	require.NoError(t, store.Migrate(db))
	return db, store.NewQueue(db), store.NewCache(db)
}

func testAnimal(tag, barcode string) *models.Animal {
	return &models.Animal{
		ID:        uuid.New(),
		TagNumber: tag,
		Barcode:   barcode,
		Name:      "Luna",
		Status:    models.AnimalActive,
	}
}

func fixture(t *testing.T, herd *fakeHerd, conn *fakeConnectivity) (*Service, *store.Queue, *store.Cache) {
	t.Helper()
	_, queue, cache := newTestStore(t)
	return NewService(herd, queue, cache, conn), queue, cache
}

func TestResolveAnimal_OnlineRefreshesCache(t *testing.T) {
	animal := testAnimal("GT001", "8901234567890")
	herd := &fakeHerd{animals: map[string]*models.Animal{"GT001": animal, "8901234567890": animal}}
	svc, _, cache := fixture(t, herd, &fakeConnectivity{mode: connectivity.Online})
	ctx := context.Background()

	got, err := svc.ResolveAnimal(ctx, "GT001")
	require.NoError(t, err)
	assert.Equal(t, animal.ID, got.ID)

	// The live answer landed in the cache under both keys.
	entry, err := cache.FindByAltKey(ctx, "8901234567890")
	require.NoError(t, err)
	assert.Equal(t, animal.ID, entry.Snapshot.ID)
}

func TestResolveAnimal_OfflineUsesCache(t *testing.T) {
	animal := testAnimal("GT001", "8901234567890")
	svc, _, cache := fixture(t, &fakeHerd{}, &fakeConnectivity{mode: connectivity.Offline})
	ctx := context.Background()

	require.NoError(t, cache.RefreshFromHerd(ctx, []*models.Animal{animal}))

	got, err := svc.ResolveAnimal(ctx, "8901234567890")
	require.NoError(t, err)
	assert.Equal(t, animal.TagNumber, got.TagNumber)
}

func TestResolveAnimal_OfflineMissQueuesNothing(t *testing.T) {
	svc, queue, _ := fixture(t, &fakeHerd{}, &fakeConnectivity{mode: connectivity.Offline})

	_, err := svc.ResolveAnimal(context.Background(), "GT404")
	assert.ErrorIs(t, err, store.ErrCacheMiss)

	size, err := queue.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

// The monitor said online but the request died at the transport: report the
// failure and answer from the cache anyway.
func TestResolveAnimal_TransportFailureFallsBackToCache(t *testing.T) {
	animal := testAnimal("GT001", "")
	herd := &fakeHerd{lookupErr: fmt.Errorf("lookup: %w", api.ErrTransient)}
	conn := &fakeConnectivity{mode: connectivity.Online}
	svc, _, cache := fixture(t, herd, conn)
	ctx := context.Background()

	require.NoError(t, cache.RefreshFromHerd(ctx, []*models.Animal{animal}))

	got, err := svc.ResolveAnimal(ctx, "GT001")
	require.NoError(t, err)
	assert.Equal(t, animal.TagNumber, got.TagNumber)
	assert.Equal(t, 1, conn.failures)
}

func TestResolveAnimal_LiveNotFoundIgnoresStaleCache(t *testing.T) {
	animal := testAnimal("GT001", "")
	svc, _, cache := fixture(t, &fakeHerd{}, &fakeConnectivity{mode: connectivity.Online})
	ctx := context.Background()

	// Cached from an earlier session, since retired on the server.
	require.NoError(t, cache.RefreshFromHerd(ctx, []*models.Animal{animal}))

	_, err := svc.ResolveAnimal(ctx, "GT001")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestResolveAnimal_RejectsMalformedCode(t *testing.T) {
	svc, _, _ := fixture(t, &fakeHerd{}, &fakeConnectivity{mode: connectivity.Online})

	for _, code := range []string{"", "a", "has space", strings.Repeat("X", 40)} {
		_, err := svc.ResolveAnimal(context.Background(), code)
		assert.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
	}
}

func TestCaptureAttendance_OnlineWritesLive(t *testing.T) {
	herd := &fakeHerd{}
	svc, queue, _ := fixture(t, herd, &fakeConnectivity{mode: connectivity.Online})

	outcome, err := svc.CaptureAttendance(context.Background(), models.AttendancePayload{
		AnimalID:       uuid.New().String(),
		AttendanceDate: "2024-05-01",
	})
	require.NoError(t, err)
	assert.False(t, outcome.Queued)
	assert.NotEmpty(t, outcome.ClientID)
	assert.Equal(t, 1, herd.postCalls)

	size, err := queue.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestCaptureAttendance_OfflineQueues(t *testing.T) {
	herd := &fakeHerd{}
	svc, queue, _ := fixture(t, herd, &fakeConnectivity{mode: connectivity.Offline})
	ctx := context.Background()

	outcome, err := svc.CaptureAttendance(ctx, models.AttendancePayload{
		AnimalID:       uuid.New().String(),
		AttendanceDate: "2024-05-01",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Queued)
	assert.Equal(t, 0, herd.postCalls)

	pending, err := queue.PeekPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, outcome.ClientID, pending[0].ClientID)
	assert.Equal(t, models.RecordAttendance, pending[0].RecordType)
}

// A live write that dies at the transport degrades to a queued one; the
// record is not lost and the monitor flips offline.
func TestCapture_TransportFailureQueues(t *testing.T) {
	herd := &fakeHerd{postErr: fmt.Errorf("post: %w", api.ErrTransient)}
	conn := &fakeConnectivity{mode: connectivity.Online}
	svc, queue, _ := fixture(t, herd, conn)

	outcome, err := svc.CaptureMedical(context.Background(), models.MedicalPayload{
		AnimalID:  uuid.New().String(),
		EventType: "vaccination",
		EventDate: "2024-05-01",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Queued)
	assert.Equal(t, 1, conn.failures)

	size, err := queue.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

// A server rejection is an answer, not an outage: surface it, queue nothing.
func TestCapture_ServerRejectionNotQueued(t *testing.T) {
	herd := &fakeHerd{postErr: &api.RejectedError{Status: 409, Reason: "attendance already recorded for this date"}}
	conn := &fakeConnectivity{mode: connectivity.Online}
	svc, queue, _ := fixture(t, herd, conn)

	_, err := svc.CaptureAttendance(context.Background(), models.AttendancePayload{
		AnimalID:       uuid.New().String(),
		AttendanceDate: "2024-05-01",
	})
	var rejected *api.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 409, rejected.Status)
	assert.Equal(t, 0, conn.failures)

	size, err := queue.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}

func TestCapture_ValidatesBeforeTouchingNetwork(t *testing.T) {
	herd := &fakeHerd{}
	svc, _, _ := fixture(t, herd, &fakeConnectivity{mode: connectivity.Online})
	ctx := context.Background()

	_, err := svc.CaptureAttendance(ctx, models.AttendancePayload{AttendanceDate: "2024-05-01"})
	assert.ErrorIs(t, err, ErrMissingAnimal)

	_, err = svc.CaptureAttendance(ctx, models.AttendancePayload{AnimalID: uuid.New().String(), AttendanceDate: "01/05/2024"})
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = svc.CaptureBreeding(ctx, models.BreedingPayload{BreedingDate: "2024-05-01"})
	assert.ErrorIs(t, err, ErrMissingAnimal)

	assert.Equal(t, 0, herd.postCalls)
}

func TestRefreshHerd(t *testing.T) {
	herd := &fakeHerd{listActive: []*models.Animal{
		testAnimal("GT001", "111"),
		testAnimal("GT002", ""),
	}}
	svc, _, cache := fixture(t, herd, &fakeConnectivity{mode: connectivity.Online})
	ctx := context.Background()

	require.NoError(t, svc.RefreshHerd(ctx))

	entry, err := cache.FindByAltKey(ctx, "GT002")
	require.NoError(t, err)
	assert.Equal(t, "GT002", entry.TagNumber)
}

func TestRefreshHerd_TransportFailureFlipsMonitor(t *testing.T) {
	herd := &fakeHerd{listErr: fmt.Errorf("list: %w", api.ErrTransient)}
	conn := &fakeConnectivity{mode: connectivity.Online}
	svc, _, _ := fixture(t, herd, conn)

	err := svc.RefreshHerd(context.Background())
	assert.ErrorIs(t, err, api.ErrTransient)
	assert.Equal(t, 1, conn.failures)
}
