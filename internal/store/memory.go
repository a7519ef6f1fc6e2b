package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pitchreel/api/internal/model"
)

// MemoryStore implements Gateway in process memory. It backs tests and local
// development without a redis server. Values are copied through JSON on the
// way in and out so callers never share row pointers with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*model.Job
	tasks   map[string]map[string]*model.Task
	scenes  map[string]map[string]*model.Scene
	shots   map[string]map[string]*model.Shot
	cancels map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*model.Job),
		tasks:   make(map[string]map[string]*model.Task),
		scenes:  make(map[string]map[string]*model.Scene),
		shots:   make(map[string]map[string]*model.Shot),
		cancels: make(map[string]bool),
	}
}

func clone[T any](src *T) *T {
	data, _ := json.Marshal(src)
	dst := new(T)
	_ = json.Unmarshal(data, dst)
	return dst
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(job), nil
}

func (s *MemoryStore) SaveJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = clone(job)
	return nil
}

func (s *MemoryStore) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	delete(s.tasks, id)
	delete(s.scenes, id)
	delete(s.shots, id)
	delete(s.cancels, id)
	return nil
}

func (s *MemoryStore) RequestCancel(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[jobID] = true
	return nil
}

func (s *MemoryStore) CancelRequested(_ context.Context, jobID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancels[jobID], nil
}

func (s *MemoryStore) ListTasks(_ context.Context, jobID string) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Task, 0, len(s.tasks[jobID]))
	for _, t := range s.tasks[jobID] {
		out = append(out, clone(t))
	}
	sortBySeq(out)
	return out, nil
}

func (s *MemoryStore) SaveTask(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[task.JobID] == nil {
		s.tasks[task.JobID] = make(map[string]*model.Task)
	}
	s.tasks[task.JobID][task.ID] = clone(task)
	return nil
}

func (s *MemoryStore) SaveTasks(_ context.Context, jobID string, tasks []*model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[jobID] == nil {
		s.tasks[jobID] = make(map[string]*model.Task)
	}
	for _, t := range tasks {
		s.tasks[jobID][t.ID] = clone(t)
	}
	return nil
}

func (s *MemoryStore) ListScenes(_ context.Context, jobID string) ([]*model.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Scene, 0, len(s.scenes[jobID]))
	for _, sc := range s.scenes[jobID] {
		out = append(out, clone(sc))
	}
	sortScenes(out)
	return out, nil
}

func (s *MemoryStore) SaveScene(_ context.Context, scene *model.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scenes[scene.JobID] == nil {
		s.scenes[scene.JobID] = make(map[string]*model.Scene)
	}
	s.scenes[scene.JobID][scene.ID] = clone(scene)
	return nil
}

func (s *MemoryStore) ListShots(_ context.Context, jobID string) ([]*model.Shot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Shot, 0, len(s.shots[jobID]))
	for _, sh := range s.shots[jobID] {
		out = append(out, clone(sh))
	}
	return out, nil
}

func (s *MemoryStore) SaveShot(_ context.Context, shot *model.Shot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shots[shot.JobID] == nil {
		s.shots[shot.JobID] = make(map[string]*model.Shot)
	}
	s.shots[shot.JobID][shot.ID] = clone(shot)
	return nil
}

// MemoryLocker implements Locker for single-process use. Like the redis
// locker, release is holder-guarded: a stale release after TTL expiry cannot
// drop a lease re-acquired by another caller.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
}

type memoryLease struct {
	token string
	until time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryLease)}
}

func (l *MemoryLocker) Acquire(_ context.Context, jobID string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lease, held := l.leases[jobID]; held && time.Now().Before(lease.until) {
		return nil, false, nil
	}
	token := uuid.New().String()
	l.leases[jobID] = memoryLease{token: token, until: time.Now().Add(ttl)}
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, held := l.leases[jobID]; held && lease.token == token {
			delete(l.leases, jobID)
		}
	}
	return release, true, nil
}

func sortBySeq(tasks []*model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Seq < tasks[j].Seq })
}

func sortScenes(scenes []*model.Scene) {
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].SortIndex < scenes[j].SortIndex })
}
