package repository

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"popsim/internal/model"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes in the fallback store
const (
	simulationPrefix = "sim:"
	pollPrefix       = "poll:"
	agentPrefix      = "agents:"
)

// FallbackStore is an embedded BadgerDB store that keeps generated work when
// the primary database rejects a write, so an expensive run is never lost.
type FallbackStore struct {
	db     *badger.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// OpenFallback opens the store under dir, or in memory when dir is empty
func OpenFallback(dir string, logger *zap.Logger) (*FallbackStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackStore{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (s *FallbackStore) Close() error {
	return s.db.Close()
}

// RunGC reclaims value log space
func (s *FallbackStore) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}

// SaveSimulation stores a completed simulation
func (s *FallbackStore) SaveSimulation(sim *model.Simulation) error {
	return s.putObject(simulationPrefix+sim.ID, sim)
}

// GetSimulation returns a stored simulation or nil
func (s *FallbackStore) GetSimulation(id string) (*model.Simulation, error) {
	var sim model.Simulation
	ok, err := s.getObject(simulationPrefix+id, &sim)
	if err != nil || !ok {
		return nil, err
	}
	return &sim, nil
}

// Simulations returns every stored simulation, newest first
func (s *FallbackStore) Simulations() ([]*model.Simulation, error) {
	raw, err := s.getByPrefix(simulationPrefix)
	if err != nil {
		return nil, err
	}
	sims := make([]*model.Simulation, 0, len(raw))
	for key, v := range raw {
		var sim model.Simulation
		if err := json.Unmarshal(v, &sim); err != nil {
			s.logger.Warn("skipping unreadable fallback record", zap.String("key", key), zap.Error(err))
			continue
		}
		sims = append(sims, &sim)
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].CreatedAt.After(sims[j].CreatedAt) })
	return sims, nil
}

// SavePoll stores a completed poll
func (s *FallbackStore) SavePoll(p *model.PollResult) error {
	return s.putObject(pollPrefix+p.ID, p)
}

// GetPoll returns a stored poll or nil
func (s *FallbackStore) GetPoll(id string) (*model.PollResult, error) {
	var p model.PollResult
	ok, err := s.getObject(pollPrefix+id, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// Polls returns every stored poll, newest first
func (s *FallbackStore) Polls() ([]*model.PollResult, error) {
	raw, err := s.getByPrefix(pollPrefix)
	if err != nil {
		return nil, err
	}
	polls := make([]*model.PollResult, 0, len(raw))
	for key, v := range raw {
		var p model.PollResult
		if err := json.Unmarshal(v, &p); err != nil {
			s.logger.Warn("skipping unreadable fallback record", zap.String("key", key), zap.Error(err))
			continue
		}
		polls = append(polls, &p)
	}
	sort.Slice(polls, func(i, j int) bool { return polls[i].CreatedAt.After(polls[j].CreatedAt) })
	return polls, nil
}

// SaveAgents stores generated agents under their cluster
func (s *FallbackStore) SaveAgents(agents []model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		for _, a := range agents {
			data, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("failed to marshal agent: %w", err)
			}
			if err := txn.Set([]byte(agentKey(a.ClusterID, a.AgentNumber)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Agents returns a cluster's stored agents ordered by agent number
func (s *FallbackStore) Agents(clusterID string) ([]model.Agent, error) {
	raw, err := s.getByPrefix(agentPrefix + clusterID + ":")
	if err != nil {
		return nil, err
	}
	agents := make([]model.Agent, 0, len(raw))
	for key, v := range raw {
		var a model.Agent
		if err := json.Unmarshal(v, &a); err != nil {
			s.logger.Warn("skipping unreadable fallback record", zap.String("key", key), zap.Error(err))
			continue
		}
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentNumber < agents[j].AgentNumber })
	return agents, nil
}

// DeleteSimulation removes a stored simulation
func (s *FallbackStore) DeleteSimulation(id string) error {
	return s.delete(simulationPrefix + id)
}

// DeletePoll removes a stored poll
func (s *FallbackStore) DeletePoll(id string) error {
	return s.delete(pollPrefix + id)
}

func agentKey(clusterID string, number int) string {
	return fmt.Sprintf("%s%s:%010d", agentPrefix, clusterID, number)
}

func (s *FallbackStore) putObject(key string, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *FallbackStore) getObject(key string, obj interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *FallbackStore) getByPrefix(prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string][]byte)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[string(item.KeyCopy(nil))] = val
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return result, nil
}

func (s *FallbackStore) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
