package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"popsim/internal/model"
)

// store is a mutex-guarded map of struct values. Reads hand out shallow
// copies: scalar fields are isolated from the stored value, slices and maps
// are shared, so callers replace them rather than mutate them in place.
type store[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	seq   map[string]int // insertion order
	next  int
}

func newStore[T any]() *store[T] {
	return &store[T]{items: make(map[string]T), seq: make(map[string]int)}
}

func (s *store[T]) put(id string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seq[id]; !ok {
		s.seq[id] = s.next
		s.next++
	}
	s.items[id] = v
}

func (s *store[T]) get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	return v, ok
}

func (s *store[T]) replace(id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	s.items[id] = v
	return nil
}

func (s *store[T]) remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.items, id)
	delete(s.seq, id)
	return nil
}

// filter returns matching values in insertion order
func (s *store[T]) filter(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.items))
	for id, v := range s.items {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return s.seq[ids[i]] < s.seq[ids[j]] })
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = s.items[id]
	}
	return out
}

func (s *store[T]) removeWhere(match func(T) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, v := range s.items {
		if match(v) {
			delete(s.items, id)
			delete(s.seq, id)
			n++
		}
	}
	return n
}

func ptrs[T any](vs []T) []*T {
	out := make([]*T, len(vs))
	for i := range vs {
		out[i] = &vs[i]
	}
	return out
}

type memoryZoneRepo struct{ s *store[model.Zone] }

// NewMemoryZoneRepo creates a process-local zone repository
func NewMemoryZoneRepo() ZoneRepo { return &memoryZoneRepo{newStore[model.Zone]()} }

func (r *memoryZoneRepo) Create(_ context.Context, zone *model.Zone) error {
	now := time.Now()
	zone.CreatedAt, zone.UpdatedAt = now, now
	r.s.put(zone.ID, *zone)
	return nil
}

func (r *memoryZoneRepo) GetByID(_ context.Context, id string) (*model.Zone, error) {
	z, ok := r.s.get(id)
	if !ok {
		return nil, nil
	}
	return &z, nil
}

func (r *memoryZoneRepo) List(context.Context) ([]*model.Zone, error) {
	zones := r.s.filter(func(model.Zone) bool { return true })
	sort.SliceStable(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return ptrs(zones), nil
}

func (r *memoryZoneRepo) Update(_ context.Context, zone *model.Zone) error {
	zone.UpdatedAt = time.Now()
	return r.s.replace(zone.ID, *zone)
}

func (r *memoryZoneRepo) Delete(_ context.Context, id string) error {
	return r.s.remove(id)
}

type memoryClusterRepo struct {
	s  *store[model.Cluster]
	mu sync.Mutex // serializes ReserveAgentNumbers
}

// NewMemoryClusterRepo creates a process-local cluster repository
func NewMemoryClusterRepo() ClusterRepo { return &memoryClusterRepo{s: newStore[model.Cluster]()} }

func (r *memoryClusterRepo) Create(_ context.Context, c *model.Cluster) error {
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.NextAgentNumber < 1 {
		c.NextAgentNumber = 1
	}
	r.s.put(c.ID, *c)
	return nil
}

func (r *memoryClusterRepo) GetByID(_ context.Context, id string) (*model.Cluster, error) {
	c, ok := r.s.get(id)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memoryClusterRepo) ListByZone(_ context.Context, zoneID string) ([]*model.Cluster, error) {
	return ptrs(r.s.filter(func(c model.Cluster) bool { return zoneID == "" || c.ZoneID == zoneID })), nil
}

func (r *memoryClusterRepo) Update(_ context.Context, c *model.Cluster) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.s.get(c.ID)
	if !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now()
	c.NextAgentNumber = cur.NextAgentNumber
	c.CreatedAt = cur.CreatedAt
	return r.s.replace(c.ID, *c)
}

func (r *memoryClusterRepo) Delete(_ context.Context, id string) error {
	return r.s.remove(id)
}

func (r *memoryClusterRepo) DeleteByZone(_ context.Context, zoneID string) (int64, error) {
	return r.s.removeWhere(func(c model.Cluster) bool { return c.ZoneID == zoneID }), nil
}

func (r *memoryClusterRepo) ReserveAgentNumbers(_ context.Context, clusterID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("cannot reserve %d agent numbers", n)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.s.get(clusterID)
	if !ok {
		return 0, ErrNotFound
	}
	start := firstAgentNumber(c.NextAgentNumber)
	c.NextAgentNumber = start + n
	return start, r.s.replace(clusterID, c)
}

type memoryDemographicRepo struct{ s *store[model.Demographic] }

// NewMemoryDemographicRepo creates a process-local demographic repository
func NewMemoryDemographicRepo() DemographicRepo {
	return &memoryDemographicRepo{newStore[model.Demographic]()}
}

func (r *memoryDemographicRepo) Create(_ context.Context, d *model.Demographic) error {
	r.s.put(d.ID, *d)
	return nil
}

func (r *memoryDemographicRepo) GetByID(_ context.Context, id string) (*model.Demographic, error) {
	d, ok := r.s.get(id)
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *memoryDemographicRepo) ListByZone(_ context.Context, zoneID string) ([]*model.Demographic, error) {
	out := r.s.filter(func(d model.Demographic) bool { return d.ZoneID == zoneID })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Label < out[j].Label
	})
	return ptrs(out), nil
}

func (r *memoryDemographicRepo) Delete(_ context.Context, id string) error {
	return r.s.remove(id)
}

func (r *memoryDemographicRepo) DeleteByZone(_ context.Context, zoneID string) (int64, error) {
	return r.s.removeWhere(func(d model.Demographic) bool { return d.ZoneID == zoneID }), nil
}

type memoryAgentRepo struct{ s *store[model.Agent] }

// NewMemoryAgentRepo creates a process-local agent repository
func NewMemoryAgentRepo() AgentRepo { return &memoryAgentRepo{newStore[model.Agent]()} }

func (r *memoryAgentRepo) CreateMany(_ context.Context, agents []model.Agent) error {
	for _, a := range agents {
		dup := r.s.filter(func(x model.Agent) bool {
			return x.ID == a.ID || (x.ClusterID == a.ClusterID && x.AgentNumber == a.AgentNumber)
		})
		if len(dup) > 0 {
			return fmt.Errorf("agent %s (cluster %s #%d) already exists", a.ID, a.ClusterID, a.AgentNumber)
		}
	}
	for _, a := range agents {
		r.s.put(a.ID, a)
	}
	return nil
}

func (r *memoryAgentRepo) GetByID(_ context.Context, id string) (*model.Agent, error) {
	a, ok := r.s.get(id)
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memoryAgentRepo) ListByCluster(_ context.Context, clusterID string) ([]*model.Agent, error) {
	out := r.s.filter(func(a model.Agent) bool { return a.ClusterID == clusterID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].AgentNumber < out[j].AgentNumber })
	return ptrs(out), nil
}

func (r *memoryAgentRepo) CountByCluster(_ context.Context, clusterID string) (int64, error) {
	return int64(len(r.s.filter(func(a model.Agent) bool { return a.ClusterID == clusterID }))), nil
}

func (r *memoryAgentRepo) Update(_ context.Context, a *model.Agent) error {
	return r.s.replace(a.ID, *a)
}

func (r *memoryAgentRepo) Delete(_ context.Context, id string) error {
	return r.s.remove(id)
}

func (r *memoryAgentRepo) DeleteByCluster(_ context.Context, clusterID string) (int64, error) {
	return r.s.removeWhere(func(a model.Agent) bool { return a.ClusterID == clusterID }), nil
}

type memorySimulationRepo struct{ s *store[model.Simulation] }

// NewMemorySimulationRepo creates a process-local simulation repository
func NewMemorySimulationRepo() SimulationRepo {
	return &memorySimulationRepo{newStore[model.Simulation]()}
}

func (r *memorySimulationRepo) Save(_ context.Context, sim *model.Simulation) error {
	r.s.put(sim.ID, *sim)
	return nil
}

func (r *memorySimulationRepo) GetByID(_ context.Context, id string) (*model.Simulation, error) {
	sim, ok := r.s.get(id)
	if !ok {
		return nil, nil
	}
	return &sim, nil
}

func (r *memorySimulationRepo) List(_ context.Context, limit int) ([]*model.Simulation, error) {
	sims := r.s.filter(func(model.Simulation) bool { return true })
	sort.SliceStable(sims, func(i, j int) bool { return sims[i].CreatedAt.After(sims[j].CreatedAt) })
	if limit > 0 && len(sims) > limit {
		sims = sims[:limit]
	}
	for i := range sims {
		sims[i].Panel = nil
		sims[i].Results = nil
	}
	return ptrs(sims), nil
}

func (r *memorySimulationRepo) Delete(_ context.Context, id string) error {
	return r.s.remove(id)
}

type memoryPollRepo struct{ s *store[model.PollResult] }

// NewMemoryPollRepo creates a process-local poll repository
func NewMemoryPollRepo() PollRepo { return &memoryPollRepo{newStore[model.PollResult]()} }

func (r *memoryPollRepo) Save(_ context.Context, p *model.PollResult) error {
	r.s.put(p.ID, *p)
	return nil
}

func (r *memoryPollRepo) GetByID(_ context.Context, id string) (*model.PollResult, error) {
	p, ok := r.s.get(id)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memoryPollRepo) List(_ context.Context, limit int) ([]*model.PollResult, error) {
	polls := r.s.filter(func(model.PollResult) bool { return true })
	sort.SliceStable(polls, func(i, j int) bool { return polls[i].CreatedAt.After(polls[j].CreatedAt) })
	if limit > 0 && len(polls) > limit {
		polls = polls[:limit]
	}
	for i := range polls {
		polls[i].Panel = nil
		polls[i].Responses = nil
	}
	return ptrs(polls), nil
}

func (r *memoryPollRepo) Delete(_ context.Context, id string) error {
	return r.s.remove(id)
}
