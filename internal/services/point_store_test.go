package services

import (
	"context"
	"distance-matrix-service/internal/domain"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGeocoder answers from fixed tables. A gated query blocks until its
// channel is closed.
type fakeGeocoder struct {
	mu     sync.Mutex
	coords map[string]domain.Coordinates
	gates  map[string]chan struct{}
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{
		coords: map[string]domain.Coordinates{},
		gates:  map[string]chan struct{}{},
	}
}

func (g *fakeGeocoder) gate(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[key] = ch
	return ch
}

func (g *fakeGeocoder) wait(ctx context.Context, key string) {
	g.mu.Lock()
	ch := g.gates[key]
	g.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (g *fakeGeocoder) ForwardGeocode(ctx context.Context, address string) *domain.Coordinates {
	g.wait(ctx, address)

	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.coords[address]
	if !ok {
		return nil
	}
	return &c
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	key := domain.FormatLatLng(lat, lng)
	g.wait(ctx, key)
	return fmt.Sprintf("near %s", key)
}

type memoryStateStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{values: map[string][]byte{}}
}

func (m *memoryStateStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryStateStore) Save(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "p" + strconv.Itoa(n)
	}
}

func newTestStore(t *testing.T, geo PointGeocoder, state *memoryStateStore) *PointStore {
	t.Helper()

	opts := PointStoreOptions{
		Geocoder:   geo,
		Recomputer: NewRecomputer(context.Background(), &lngSumResolver{}, nil, nil),
		NewID:      sequentialIDs(),
	}
	if state != nil {
		opts.State = state
	}

	s := NewPointStore(context.Background(), opts)
	t.Cleanup(s.Wait)
	return s
}

func ids(points []domain.Point) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, p.ID)
	}
	return out
}

func TestNewPointStoreDefaults(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)

	snap := s.Snapshot()
	assert.Equal(t, []string{"p1"}, ids(snap.Origins))
	assert.Equal(t, []string{"p2"}, ids(snap.Destinations))
	assert.Equal(t, domain.ModeOneToMany, snap.Mode)
	assert.Equal(t, domain.DefaultViewport(), snap.Viewport)
}

func TestAddSecondOriginInOneToManyIsNoop(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	before := s.Snapshot()

	id, added, err := s.Add(domain.RoleOrigin)

	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, id)
	assert.Equal(t, before.Version, s.Snapshot().Version)
	assert.Len(t, s.Snapshot().Origins, 1)
}

func TestAddDestination(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)

	id, added, err := s.Add(domain.RoleDestination)

	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"p2", id}, ids(s.Snapshot().Destinations))
}

func TestAddInvalidRole(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)

	_, _, err := s.Add(domain.Role("waypoint"))
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestSetModeTruncatesOrigins(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	require.NoError(t, s.SetMode(domain.ModeManyToMany))

	for range 2 {
		_, added, err := s.Add(domain.RoleOrigin)
		require.NoError(t, err)
		require.True(t, added)
	}
	require.Len(t, s.Snapshot().Origins, 3)

	require.NoError(t, s.SetMode(domain.ModeOneToMany))

	snap := s.Snapshot()
	assert.Equal(t, []string{"p1"}, ids(snap.Origins))
	assert.Equal(t, domain.ModeOneToMany, snap.Mode)

	assert.ErrorIs(t, s.SetMode(domain.Mode("all-to-all")), domain.ErrInvalidMode)
}

func TestRemoveKeepsCollectionNonEmpty(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "Berlin"))

	require.NoError(t, s.Remove("p2", domain.RoleDestination))

	snap := s.Snapshot()
	require.Len(t, snap.Destinations, 1)
	assert.Equal(t, domain.Point{ID: "p2"}, snap.Destinations[0])
}

func TestRemoveDeletesWhenSeveral(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	id, _, err := s.Add(domain.RoleDestination)
	require.NoError(t, err)

	require.NoError(t, s.Remove("p2", domain.RoleDestination))
	assert.Equal(t, []string{id}, ids(s.Snapshot().Destinations))

	assert.ErrorIs(t, s.Remove("missing", domain.RoleDestination), domain.ErrPointNotFound)
}

func TestSnapshotsAreNotMutated(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	before := s.Snapshot()

	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "Berlin"))

	assert.Empty(t, before.Destinations[0].Address)
	assert.Equal(t, "Berlin", s.Snapshot().Destinations[0].Address)
}

func TestUpdateAddressClearsCoords(t *testing.T) {
	geo := newFakeGeocoder()
	geo.coords["Berlin"] = domain.Coordinates{Lat: 52.52, Lng: 13.405, Name: "Berlin"}
	s := newTestStore(t, geo, nil)

	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "Berlin"))
	require.NoError(t, s.ResolveOnBlur("p2", domain.RoleDestination))
	s.Wait()
	require.NotNil(t, s.Snapshot().Destinations[0].Coords)

	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "Berl"))

	d := s.Snapshot().Destinations[0]
	assert.Equal(t, "Berl", d.Address)
	assert.Nil(t, d.Coords)
	assert.False(t, d.Loading)
}

func TestResolveOnBlur(t *testing.T) {
	geo := newFakeGeocoder()
	geo.coords["Date line"] = domain.Coordinates{Lat: 10, Lng: 190, Name: "Date line"}
	s := newTestStore(t, geo, nil)

	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "Date line"))
	fit := s.Snapshot().FitBounds

	release := geo.gate("Date line")
	require.NoError(t, s.ResolveOnBlur("p2", domain.RoleDestination))
	assert.True(t, s.Snapshot().Destinations[0].Loading)

	close(release)
	s.Wait()

	snap := s.Snapshot()
	d := snap.Destinations[0]
	assert.False(t, d.Loading)
	require.NotNil(t, d.Coords)
	assert.Equal(t, -170.0, d.Coords.Lng)
	assert.Equal(t, fit+1, snap.FitBounds)
}

func TestResolveOnBlurMiss(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)

	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "Atlantis"))
	fit := s.Snapshot().FitBounds
	require.NoError(t, s.ResolveOnBlur("p2", domain.RoleDestination))
	s.Wait()

	snap := s.Snapshot()
	d := snap.Destinations[0]
	assert.False(t, d.Loading)
	assert.Nil(t, d.Coords)
	assert.NotEmpty(t, d.Error)
	assert.Equal(t, fit, snap.FitBounds)
}

func TestResolveOnBlurBlankAddressIsNoop(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "   "))
	version := s.Snapshot().Version

	require.NoError(t, s.ResolveOnBlur("p2", domain.RoleDestination))

	assert.Equal(t, version, s.Snapshot().Version)
	assert.False(t, s.Snapshot().Destinations[0].Loading)
}

func TestResolveOnBlurCommitsByID(t *testing.T) {
	geo := newFakeGeocoder()
	geo.coords["Slow"] = domain.Coordinates{Lat: 1, Lng: 1}
	s := newTestStore(t, geo, nil)

	second, _, err := s.Add(domain.RoleDestination)
	require.NoError(t, err)
	require.NoError(t, s.UpdateAddress(second, domain.RoleDestination, "Slow"))

	release := geo.gate("Slow")
	require.NoError(t, s.ResolveOnBlur(second, domain.RoleDestination))

	// Shift positions while the lookup is in flight.
	require.NoError(t, s.Remove("p2", domain.RoleDestination))
	third, _, err := s.Add(domain.RoleDestination)
	require.NoError(t, err)

	close(release)
	s.Wait()

	snap := s.Snapshot()
	require.Equal(t, []string{second, third}, ids(snap.Destinations))
	assert.NotNil(t, snap.Destinations[0].Coords)
	assert.Nil(t, snap.Destinations[1].Coords)
}

func TestCompletionForRemovedPointIsDropped(t *testing.T) {
	geo := newFakeGeocoder()
	geo.coords["Slow"] = domain.Coordinates{Lat: 1, Lng: 1}
	s := newTestStore(t, geo, nil)

	other, _, err := s.Add(domain.RoleDestination)
	require.NoError(t, err)
	require.NoError(t, s.UpdateAddress("p2", domain.RoleDestination, "Slow"))

	release := geo.gate("Slow")
	require.NoError(t, s.ResolveOnBlur("p2", domain.RoleDestination))
	require.NoError(t, s.Remove("p2", domain.RoleDestination))

	close(release)
	s.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Destinations, 1)
	assert.Equal(t, domain.Point{ID: other}, snap.Destinations[0])
}

func TestAddFromMapClickReusesEmptySlot(t *testing.T) {
	geo := newFakeGeocoder()
	s := newTestStore(t, geo, nil)
	fit := s.Snapshot().FitBounds

	release := geo.gate("48.000000, 2.000000")
	id, err := s.AddFromMapClick(48, 2, domain.RoleDestination)
	require.NoError(t, err)
	assert.Equal(t, "p2", id)

	d := s.Snapshot().Destinations[0]
	assert.Equal(t, "Fetching address...", d.Address)
	assert.True(t, d.Loading)
	assert.Equal(t, fit+1, s.Snapshot().FitBounds)

	close(release)
	s.Wait()

	d = s.Snapshot().Destinations[0]
	assert.Equal(t, "near 48.000000, 2.000000", d.Address)
	assert.False(t, d.Loading)
	require.NotNil(t, d.Coords)
	assert.Equal(t, 48.0, d.Coords.Lat)

	// No empty slot left: the next click appends.
	next, err := s.AddFromMapClick(49, 3, domain.RoleDestination)
	require.NoError(t, err)
	s.Wait()
	assert.Equal(t, []string{"p2", next}, ids(s.Snapshot().Destinations))
}

func TestAddFromMapClickReplacesSoleOrigin(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	require.NoError(t, s.UpdateAddress("p1", domain.RoleOrigin, "Paris"))

	id, err := s.AddFromMapClick(10, 370, domain.RoleOrigin)
	require.NoError(t, err)
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, "p1", id)
	require.Len(t, snap.Origins, 1)
	require.NotNil(t, snap.Origins[0].Coords)
	assert.Equal(t, 10.0, snap.Origins[0].Coords.Lng)
	assert.Equal(t, "near 10.000000, 10.000000", snap.Origins[0].Address)
}

func TestAddFromMapClickRejectsBadLatitude(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)

	_, err := s.AddFromMapClick(91, 0, domain.RoleDestination)
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinates)
}

func TestMoveViaDragLatestWins(t *testing.T) {
	geo := newFakeGeocoder()
	s := newTestStore(t, geo, nil)

	first := geo.gate("1.000000, 1.000000")
	second := geo.gate("2.000000, 2.000000")

	require.NoError(t, s.MoveViaDrag("p2", 1, 1))
	assert.Equal(t, "Updating location...", s.Snapshot().Destinations[0].Address)
	require.NoError(t, s.MoveViaDrag("p2", 2, 2))

	close(second)
	close(first)
	s.Wait()

	d := s.Snapshot().Destinations[0]
	assert.Equal(t, "near 2.000000, 2.000000", d.Address)
	assert.Equal(t, 2.0, d.Coords.Lat)
	assert.False(t, d.Loading)

	assert.ErrorIs(t, s.MoveViaDrag("missing", 1, 1), domain.ErrPointNotFound)
}

func TestStoreRecomputesResults(t *testing.T) {
	s := newTestStore(t, newFakeGeocoder(), nil)
	require.NoError(t, s.SetMode(domain.ModeManyToMany))

	_, err := s.AddFromMapClick(0, 1, domain.RoleOrigin)
	require.NoError(t, err)
	_, _, err = s.Add(domain.RoleOrigin)
	require.NoError(t, err)
	_, err = s.AddFromMapClick(0, 2, domain.RoleOrigin)
	require.NoError(t, err)
	for _, lng := range []float64{3, 4, 5} {
		_, err = s.AddFromMapClick(0, lng, domain.RoleDestination)
		require.NoError(t, err)
	}
	s.Wait()

	results, gen := s.Results()
	assert.Equal(t, s.Snapshot().Version, gen)
	require.Len(t, results, 6)
	assert.Equal(t, 103.0, results[0].Distance)
	assert.Equal(t, 205.0, results[5].Distance)
}

func TestStatePersistsAndRestores(t *testing.T) {
	state := newMemoryStateStore()
	s := newTestStore(t, newFakeGeocoder(), state)

	require.NoError(t, s.SetMode(domain.ModeManyToMany))
	_, err := s.AddFromMapClick(10, 20, domain.RoleDestination)
	require.NoError(t, err)
	require.NoError(t, s.SetViewport(context.Background(), domain.Viewport{Center: [2]float64{40, 380}, Zoom: 6}))
	s.Wait()

	restored := newTestStore(t, newFakeGeocoder(), state)
	require.NoError(t, restored.Restore(context.Background()))
	restored.Wait()

	snap := restored.Snapshot()
	assert.Equal(t, domain.ModeManyToMany, snap.Mode)
	assert.Equal(t, domain.Viewport{Center: [2]float64{40, 20}, Zoom: 6}, snap.Viewport)
	require.Len(t, snap.Destinations, 1)
	assert.Equal(t, "near 10.000000, 20.000000", snap.Destinations[0].Address)

	results, _ := restored.Results()
	assert.Empty(t, results)
}

func TestRestoreNormalizesAndClearsLoading(t *testing.T) {
	state := newMemoryStateStore()
	state.values[KeyOrigins] = []byte(`[{"id":"o1","address":"x","coords":{"lat":1,"lng":190},"loading":true}]`)
	state.values[KeyDestinations] = []byte(`[{"id":"d1","address":"y","coords":{"lat":2,"lng":3}},{"id":"d2","address":"z","coords":{"lat":4,"lng":5}}]`)
	state.values[KeyMode] = []byte("one-to-many")

	s := newTestStore(t, newFakeGeocoder(), state)
	require.NoError(t, s.Restore(context.Background()))
	s.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Origins, 1)
	assert.False(t, snap.Origins[0].Loading)
	assert.Equal(t, -170.0, snap.Origins[0].Coords.Lng)
	assert.Equal(t, domain.DefaultViewport(), snap.Viewport)

	results, _ := s.Results()
	assert.Len(t, results, 2)
}

func TestRestorePersistsTruncatedOrigins(t *testing.T) {
	state := newMemoryStateStore()
	state.values[KeyOrigins] = []byte(`[{"id":"o1","address":"x","coords":{"lat":1,"lng":190}},{"id":"o2","address":"y","coords":{"lat":2,"lng":3}}]`)
	state.values[KeyMode] = []byte("one-to-many")

	s := newTestStore(t, newFakeGeocoder(), state)
	require.NoError(t, s.Restore(context.Background()))
	s.Wait()

	raw, found, err := state.Load(context.Background(), KeyOrigins)
	require.NoError(t, err)
	require.True(t, found)

	var saved []domain.Point
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "o1", saved[0].ID)
	assert.Equal(t, -170.0, saved[0].Coords.Lng)
}

func TestConcurrentMutationsSettle(t *testing.T) {
	geo := newFakeGeocoder()
	geo.coords["Alexanderplatz"] = domain.Coordinates{Lat: 52.5219, Lng: 13.4132, Name: "Alexanderplatz"}

	pub := &recordingPublisher{}
	s := NewPointStore(context.Background(), PointStoreOptions{
		Geocoder:   geo,
		Recomputer: NewRecomputer(context.Background(), &lngSumResolver{}, pub, nil),
		State:      newMemoryStateStore(),
		NewID:      sequentialIDs(),
	})
	require.NoError(t, s.SetMode(domain.ModeManyToMany))

	const workers = 50
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			lng := float64(170 + i)
			role := domain.RoleDestination
			if i%2 == 0 {
				role = domain.RoleOrigin
			}

			id, err := s.AddFromMapClick(float64(i%80), lng, role)
			assert.NoError(t, err)
			assert.NoError(t, s.MoveViaDrag(id, float64(i%80), lng+1))

			switch i % 5 {
			case 0:
				assert.NoError(t, s.UpdateAddress(id, role, "Alexanderplatz"))
				assert.NoError(t, s.ResolveOnBlur(id, role))
			case 1:
				// Another worker may already have reset this point.
				_ = s.Remove(id, role)
			}
		}()
	}
	wg.Wait()
	s.Wait()

	snap := s.Snapshot()
	withCoords := func(points []domain.Point) int {
		n := 0
		for _, p := range points {
			assert.False(t, p.Loading, "point %s still loading", p.ID)
			if p.Coords != nil {
				assert.GreaterOrEqual(t, p.Coords.Lng, -180.0)
				assert.Less(t, p.Coords.Lng, 180.0)
				n++
			}
		}
		return n
	}
	m := withCoords(snap.Origins)
	n := withCoords(snap.Destinations)

	results, gen := s.Results()
	assert.Equal(t, snap.Version, gen)
	assert.Len(t, results, m*n)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.NotEmpty(t, pub.generations)
	assert.IsIncreasing(t, pub.generations)
	assert.Equal(t, snap.Version, pub.generations[len(pub.generations)-1])
}
