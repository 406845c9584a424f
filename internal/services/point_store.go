package services

import (
	"context"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/ports"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Persistence keys.
const (
	KeyOrigins      = "origins"
	KeyDestinations = "destinations"
	KeyMode         = "mode"
	KeyViewport     = "map_view"
)

// Placeholder addresses shown while a reverse lookup is in flight.
const (
	addressFetching = "Fetching address..."
	addressUpdating = "Updating location..."

	errAddressNotFound = "Address not found"
)

// PointGeocoder is the geocoding capability the store relies on.
type PointGeocoder interface {
	ForwardGeocode(ctx context.Context, address string) *domain.Coordinates
	ReverseGeocode(ctx context.Context, lat, lng float64) string
}

// Snapshot is an immutable view of the store. Version increases on every
// change to the point collections or the mode; FitBounds increases each time
// the map should refit to the points.
type Snapshot struct {
	Origins      []domain.Point  `json:"origins"`
	Destinations []domain.Point  `json:"destinations"`
	Mode         domain.Mode     `json:"mode"`
	Viewport     domain.Viewport `json:"viewport"`
	FitBounds    uint64          `json:"fitBounds"`
	Version      uint64          `json:"version"`
}

type PointStoreOptions struct {
	Geocoder   PointGeocoder
	Recomputer *Recomputer
	// State persists the collections, mode and viewport; nil keeps state in memory only.
	State ports.StateStore
	Log   *zap.Logger
	// NewID allocates point ids; defaults to random UUIDs.
	NewID func() string
}

// PointStore owns the origin and destination collections.
//
// Mutators never modify a published slice: each change builds new slices,
// so snapshots handed out earlier stay valid. Async completions (geocoding)
// locate their target by id in the current collections and are dropped when
// the id is gone or a newer operation on the same point has started.
type PointStore struct {
	geocoder   PointGeocoder
	recomputer *Recomputer
	state      ports.StateStore
	log        *zap.Logger
	newID      func() string
	ctx        context.Context

	mu           sync.Mutex
	origins      []domain.Point
	destinations []domain.Point
	mode         domain.Mode
	viewport     domain.Viewport
	fitBounds    uint64
	version      uint64
	opSeq        uint64
	pending      map[string]uint64

	persistMu    sync.Mutex
	savedVersion uint64

	wg sync.WaitGroup
}

// NewPointStore creates a store holding one empty origin and one empty
// destination in one-to-many mode. Async work runs under ctx.
func NewPointStore(ctx context.Context, opts PointStoreOptions) *PointStore {
	s := &PointStore{
		geocoder:   opts.Geocoder,
		recomputer: opts.Recomputer,
		state:      opts.State,
		log:        opts.Log,
		newID:      opts.NewID,
		ctx:        ctx,
		mode:       domain.ModeOneToMany,
		viewport:   domain.DefaultViewport(),
		pending:    map[string]uint64{},
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}

	s.origins = []domain.Point{{ID: s.newID()}}
	s.destinations = []domain.Point{{ID: s.newID()}}

	return s
}

// Restore loads persisted state, normalizing longitudes and clearing stale
// loading flags, saves the cleaned state back, then schedules a
// recomputation and resolves any stored addresses that lack coordinates.
// Missing keys keep defaults.
func (s *PointStore) Restore(ctx context.Context) error {
	if s.state == nil {
		s.recompute(s.Snapshot())
		return nil
	}

	origins, err := s.loadPoints(ctx, KeyOrigins)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	destinations, err := s.loadPoints(ctx, KeyDestinations)
	if err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	var mode domain.Mode
	raw, found, err := s.state.Load(ctx, KeyMode)
	if err != nil {
		return fmt.Errorf("restore state: load %s: %w", KeyMode, err)
	}
	if found {
		if mode, err = domain.ParseMode(string(raw)); err != nil {
			s.log.Warn("ignoring persisted mode", zap.Error(err))
		}
	}

	var viewport *domain.Viewport
	raw, found, err = s.state.Load(ctx, KeyViewport)
	if err != nil {
		return fmt.Errorf("restore state: load %s: %w", KeyViewport, err)
	}
	if found {
		var v domain.Viewport
		if err := json.Unmarshal(raw, &v); err != nil {
			s.log.Warn("ignoring persisted viewport", zap.Error(err))
		} else {
			viewport = &v
		}
	}

	s.mu.Lock()
	if len(origins) > 0 {
		s.origins = origins
	}
	if len(destinations) > 0 {
		s.destinations = destinations
	}
	if mode != "" {
		s.mode = mode
	}
	if viewport != nil {
		s.viewport = *viewport
	}
	if s.mode == domain.ModeOneToMany && len(s.origins) > 1 {
		s.origins = s.origins[:1:1]
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("state restored",
		zap.Int("origins", len(snap.Origins)),
		zap.Int("destinations", len(snap.Destinations)),
		zap.String("mode", string(snap.Mode)),
	)

	// Write back the truncated and normalized collections.
	s.persist(snap)
	s.recompute(snap)

	// Addresses saved without coordinates (seeded, or typed but never
	// resolved) are geocoded now.
	for _, role := range []domain.Role{domain.RoleOrigin, domain.RoleDestination} {
		list := snap.Origins
		if role == domain.RoleDestination {
			list = snap.Destinations
		}
		for _, p := range list {
			if p.Coords == nil && strings.TrimSpace(p.Address) != "" {
				if err := s.ResolveOnBlur(p.ID, role); err != nil {
					s.log.Warn("resolve restored point", zap.String("id", p.ID), zap.Error(err))
				}
			}
		}
	}

	return nil
}

func (s *PointStore) loadPoints(ctx context.Context, key string) ([]domain.Point, error) {
	raw, found, err := s.state.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}

	var points []domain.Point
	if err := json.Unmarshal(raw, &points); err != nil {
		s.log.Warn("ignoring unreadable persisted points", zap.String("key", key), zap.Error(err))
		return nil, nil
	}

	out := make([]domain.Point, 0, len(points))
	for _, p := range points {
		if p.ID == "" {
			p.ID = s.newID()
		}
		p.Loading = false
		out = append(out, p.Normalized())
	}
	return out, nil
}

// Snapshot returns the current state.
func (s *PointStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *PointStore) snapshotLocked() Snapshot {
	return Snapshot{
		Origins:      s.origins,
		Destinations: s.destinations,
		Mode:         s.mode,
		Viewport:     s.viewport,
		FitBounds:    s.fitBounds,
		Version:      s.version,
	}
}

// Add appends an empty point to role's collection and returns its id. In
// one-to-many mode a second origin is refused and added is false.
func (s *PointStore) Add(role domain.Role) (id string, added bool, err error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	if role == domain.RoleOrigin && s.mode == domain.ModeOneToMany && len(s.origins) >= 1 {
		s.mu.Unlock()
		return "", false, nil
	}

	id = s.newID()
	list := s.listLocked(role)
	s.setListLocked(role, appendPoint(list, domain.Point{ID: id}))
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)
	return id, true, nil
}

// Remove deletes the point, or resets it in place when it is the last one
// in its collection.
func (s *PointStore) Remove(id string, role domain.Role) error {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return err
	}

	s.mu.Lock()
	list := s.listLocked(role)
	if indexOf(list, id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("remove %s %q: %w", role, id, domain.ErrPointNotFound)
	}

	if len(list) > 1 {
		s.setListLocked(role, slices.DeleteFunc(slices.Clone(list), func(p domain.Point) bool { return p.ID == id }))
	} else {
		s.setListLocked(role, replaceByID(list, id, func(p domain.Point) domain.Point {
			return domain.Point{ID: p.ID}
		}))
	}
	delete(s.pending, id)
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)
	return nil
}

// UpdateAddress records typed text and drops any resolved coordinates. It
// does not start a lookup.
func (s *PointStore) UpdateAddress(id string, role domain.Role, text string) error {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return err
	}

	s.mu.Lock()
	list := s.listLocked(role)
	if indexOf(list, id) < 0 {
		s.mu.Unlock()
		return fmt.Errorf("update address %s %q: %w", role, id, domain.ErrPointNotFound)
	}

	// Typing supersedes any in-flight lookup for this point.
	_, wasPending := s.pending[id]
	delete(s.pending, id)

	s.setListLocked(role, replaceByID(list, id, func(p domain.Point) domain.Point {
		p.Address = text
		p.Coords = nil
		p.Error = ""
		if wasPending {
			p.Loading = false
		}
		return p
	}))
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)
	return nil
}

// ResolveOnBlur geocodes the point's current address in the background.
// Blank addresses are ignored.
func (s *PointStore) ResolveOnBlur(id string, role domain.Role) error {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return err
	}

	s.mu.Lock()
	list := s.listLocked(role)
	idx := indexOf(list, id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("resolve %s %q: %w", role, id, domain.ErrPointNotFound)
	}

	address := list[idx].Address
	if strings.TrimSpace(address) == "" {
		s.mu.Unlock()
		return nil
	}

	op := s.beginLocked(id)
	s.setListLocked(role, replaceByID(list, id, func(p domain.Point) domain.Point {
		p.Loading = true
		return p
	}))
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)

	s.goAsync(func() {
		coords := s.geocoder.ForwardGeocode(s.ctx, address)
		if coords != nil {
			c := coords.Normalized()
			coords = &c
		}

		s.commit(role, id, op, coords != nil, func(p domain.Point) domain.Point {
			p.Loading = false
			p.Coords = coords
			p.Error = ""
			if coords == nil {
				p.Error = errAddressNotFound
			}
			return p
		})
	}, func() {
		s.commit(role, id, op, false, func(p domain.Point) domain.Point {
			p.Loading = false
			return p
		})
	})

	return nil
}

// AddFromMapClick places a point at lat/lng and returns its id. The target
// is the first empty slot in role's collection, else (one-to-many origins)
// the existing origin, else a new point. The point shows a placeholder
// address until the reverse lookup completes.
func (s *PointStore) AddFromMapClick(lat, lng float64, role domain.Role) (string, error) {
	if _, err := domain.ParseRole(string(role)); err != nil {
		return "", err
	}
	if err := domain.ValidateLatLng(lat, lng); err != nil {
		return "", err
	}
	normLng := domain.NormalizeLng(lng)

	s.mu.Lock()
	list := s.listLocked(role)

	var targetID string
	if i := slices.IndexFunc(list, domain.Point.IsEmpty); i >= 0 {
		targetID = list[i].ID
	} else if role == domain.RoleOrigin && s.mode == domain.ModeOneToMany && len(list) > 0 {
		targetID = list[0].ID
	} else {
		targetID = s.newID()
	}

	optimistic := domain.Point{
		ID:      targetID,
		Address: addressFetching,
		Coords:  &domain.Coordinates{Lat: lat, Lng: normLng},
		Loading: true,
	}
	if indexOf(list, targetID) >= 0 {
		s.setListLocked(role, replaceByID(list, targetID, func(domain.Point) domain.Point { return optimistic }))
	} else {
		s.setListLocked(role, appendPoint(list, optimistic))
	}
	op := s.beginLocked(targetID)
	s.fitBounds++
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)
	s.reverseInBackground(role, targetID, op, lat, normLng)

	return targetID, nil
}

// MoveViaDrag relocates an existing point of either role.
func (s *PointStore) MoveViaDrag(id string, lat, lng float64) error {
	if err := domain.ValidateLatLng(lat, lng); err != nil {
		return err
	}
	normLng := domain.NormalizeLng(lng)

	s.mu.Lock()
	var role domain.Role
	switch {
	case indexOf(s.origins, id) >= 0:
		role = domain.RoleOrigin
	case indexOf(s.destinations, id) >= 0:
		role = domain.RoleDestination
	default:
		s.mu.Unlock()
		return fmt.Errorf("move %q: %w", id, domain.ErrPointNotFound)
	}

	s.setListLocked(role, replaceByID(s.listLocked(role), id, func(p domain.Point) domain.Point {
		p.Coords = &domain.Coordinates{Lat: lat, Lng: normLng}
		p.Address = addressUpdating
		p.Loading = true
		return p
	}))
	op := s.beginLocked(id)
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)
	s.reverseInBackground(role, id, op, lat, normLng)

	return nil
}

// SetMode switches the pairing mode. Entering one-to-many keeps only the
// first origin.
func (s *PointStore) SetMode(mode domain.Mode) error {
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return err
	}

	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return nil
	}

	s.mode = mode
	if mode == domain.ModeOneToMany && len(s.origins) > 1 {
		for _, p := range s.origins[1:] {
			delete(s.pending, p.ID)
		}
		s.origins = s.origins[:1:1]
	}
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)
	return nil
}

// SetViewport records the last map view. It does not trigger recomputation.
func (s *PointStore) SetViewport(ctx context.Context, v domain.Viewport) error {
	if err := domain.ValidateLatLng(v.Center[0], v.Center[1]); err != nil {
		return err
	}
	v.Center[1] = domain.NormalizeLng(v.Center[1])

	s.mu.Lock()
	s.viewport = v
	s.mu.Unlock()

	if s.state == nil {
		return nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("set viewport: encode: %w", err)
	}
	if err := s.state.Save(ctx, KeyViewport, raw); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

// Results returns the latest published result set and the state version it
// belongs to.
func (s *PointStore) Results() ([]domain.RouteResult, uint64) {
	if s.recomputer == nil {
		return []domain.RouteResult{}, 0
	}
	return s.recomputer.Results()
}

// Wait blocks until all in-flight lookups and recomputations have finished.
func (s *PointStore) Wait() {
	s.wg.Wait()
	if s.recomputer != nil {
		s.recomputer.Wait()
	}
}

func (s *PointStore) reverseInBackground(role domain.Role, id string, op uint64, lat, lng float64) {
	fallback := domain.FormatLatLng(lat, lng)

	s.goAsync(func() {
		address := s.geocoder.ReverseGeocode(s.ctx, lat, lng)
		if strings.TrimSpace(address) == "" {
			address = fallback
		}

		s.commit(role, id, op, false, func(p domain.Point) domain.Point {
			p.Address = address
			p.Coords = &domain.Coordinates{Lat: lat, Lng: lng, Name: address}
			p.Loading = false
			p.Error = ""
			return p
		})
	}, func() {
		s.commit(role, id, op, false, func(p domain.Point) domain.Point {
			p.Address = fallback
			p.Loading = false
			return p
		})
	})
}

// goAsync runs work in the background. If work panics, onPanic runs
// instead so no point is left loading forever.
func (s *PointStore) goAsync(work func(), onPanic func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("async point resolution panicked", zap.Any("panic", r))
				onPanic()
			}
		}()
		work()
	}()
}

// commit applies an async completion to the point with the given id if it
// still exists and op is still its latest operation.
func (s *PointStore) commit(role domain.Role, id string, op uint64, refit bool, fn func(domain.Point) domain.Point) {
	s.mu.Lock()
	if s.pending[id] != op {
		s.mu.Unlock()
		s.log.Debug("dropping superseded completion", zap.String("id", id))
		return
	}
	delete(s.pending, id)

	list := s.listLocked(role)
	if indexOf(list, id) < 0 {
		s.mu.Unlock()
		s.log.Debug("dropping completion for removed point", zap.String("id", id))
		return
	}

	s.setListLocked(role, replaceByID(list, id, fn))
	if refit {
		s.fitBounds++
	}
	snap := s.changedLocked()
	s.mu.Unlock()

	s.afterChange(snap)
}

func (s *PointStore) beginLocked(id string) uint64 {
	s.opSeq++
	s.pending[id] = s.opSeq
	return s.opSeq
}

func (s *PointStore) changedLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

// afterChange persists the snapshot and schedules a recomputation from it.
func (s *PointStore) afterChange(snap Snapshot) {
	s.persist(snap)
	s.recompute(snap)
}

func (s *PointStore) recompute(snap Snapshot) {
	if s.recomputer != nil {
		s.recomputer.Schedule(snap)
	}
}

func (s *PointStore) persist(snap Snapshot) {
	if s.state == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	// Snapshots can arrive out of order; never overwrite newer state.
	if snap.Version <= s.savedVersion {
		return
	}

	ctx := s.ctx
	if err := s.saveJSON(ctx, KeyOrigins, snap.Origins); err != nil {
		s.log.Error("persist state failed", zap.Error(err))
		return
	}
	if err := s.saveJSON(ctx, KeyDestinations, snap.Destinations); err != nil {
		s.log.Error("persist state failed", zap.Error(err))
		return
	}
	if err := s.state.Save(ctx, KeyMode, []byte(snap.Mode)); err != nil {
		s.log.Error("persist state failed", zap.String("key", KeyMode), zap.Error(err))
		return
	}
	s.savedVersion = snap.Version
}

func (s *PointStore) saveJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.state.Save(ctx, key, raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *PointStore) listLocked(role domain.Role) []domain.Point {
	if role == domain.RoleOrigin {
		return s.origins
	}
	return s.destinations
}

func (s *PointStore) setListLocked(role domain.Role, list []domain.Point) {
	if role == domain.RoleOrigin {
		s.origins = list
		return
	}
	s.destinations = list
}

func indexOf(list []domain.Point, id string) int {
	return slices.IndexFunc(list, func(p domain.Point) bool { return p.ID == id })
}

// replaceByID returns a new slice with fn applied to the point matching id.
func replaceByID(list []domain.Point, id string, fn func(domain.Point) domain.Point) []domain.Point {
	out := make([]domain.Point, len(list))
	for i, p := range list {
		if p.ID == id {
			p = fn(p)
		}
		out[i] = p
	}
	return out
}

func appendPoint(list []domain.Point, p domain.Point) []domain.Point {
	out := make([]domain.Point, 0, len(list)+1)
	out = append(out, list...)
	return append(out, p)
}
