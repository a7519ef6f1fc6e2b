package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/pitchreel/api/internal/model"
)

// Row retention. Jobs and their children expire together; a poll or step
// touches nothing older than this.
const rowTTL = 7 * 24 * time.Hour

// RedisStore implements Gateway over redis. Entities are stored as JSON
// values: the job under its own key, children in per-job hashes so a job's
// rows can be listed and cascade-deleted cheaply.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{redis: redisClient}
}

func jobKey(id string) string       { return fmt.Sprintf("job:%s", id) }
func tasksKey(jobID string) string  { return fmt.Sprintf("job:%s:tasks", jobID) }
func scenesKey(jobID string) string { return fmt.Sprintf("job:%s:scenes", jobID) }
func shotsKey(jobID string) string  { return fmt.Sprintf("job:%s:shots", jobID) }
func cancelKey(jobID string) string { return fmt.Sprintf("job:%s:cancel", jobID) }

func (s *RedisStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, rowTTL).Err()
}

func (s *RedisStore) DeleteJob(ctx context.Context, id string) error {
	return s.redis.Del(ctx, jobKey(id), tasksKey(id), scenesKey(id), shotsKey(id), cancelKey(id)).Err()
}

func (s *RedisStore) RequestCancel(ctx context.Context, jobID string) error {
	return s.redis.Set(ctx, cancelKey(jobID), "1", rowTTL).Err()
}

func (s *RedisStore) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	n, err := s.redis.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) ListTasks(ctx context.Context, jobID string) ([]*model.Task, error) {
	rows, err := s.redis.HGetAll(ctx, tasksKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	tasks := make([]*model.Task, 0, len(rows))
	for _, raw := range rows {
		var t model.Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, &t)
	}
	sortBySeq(tasks)
	return tasks, nil
}

func (s *RedisStore) SaveTask(ctx context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.redis.HSet(ctx, tasksKey(task.JobID), task.ID, data).Err()
}

func (s *RedisStore) SaveTasks(ctx context.Context, jobID string, tasks []*model.Task) error {
	pairs := make([]interface{}, 0, len(tasks)*2)
	for _, t := range tasks {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		pairs = append(pairs, t.ID, data)
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, tasksKey(jobID), pairs...)
	pipe.Expire(ctx, tasksKey(jobID), rowTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListScenes(ctx context.Context, jobID string) ([]*model.Scene, error) {
	rows, err := s.redis.HGetAll(ctx, scenesKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	scenes := make([]*model.Scene, 0, len(rows))
	for _, raw := range rows {
		var sc model.Scene
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return nil, err
		}
		scenes = append(scenes, &sc)
	}
	sortScenes(scenes)
	return scenes, nil
}

func (s *RedisStore) SaveScene(ctx context.Context, scene *model.Scene) error {
	data, err := json.Marshal(scene)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, scenesKey(scene.JobID), scene.ID, data)
	pipe.Expire(ctx, scenesKey(scene.JobID), rowTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListShots(ctx context.Context, jobID string) ([]*model.Shot, error) {
	rows, err := s.redis.HGetAll(ctx, shotsKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	shots := make([]*model.Shot, 0, len(rows))
	for _, raw := range rows {
		var sh model.Shot
		if err := json.Unmarshal([]byte(raw), &sh); err != nil {
			return nil, err
		}
		shots = append(shots, &sh)
	}
	return shots, nil
}

func (s *RedisStore) SaveShot(ctx context.Context, shot *model.Shot) error {
	data, err := json.Marshal(shot)
	if err != nil {
		return err
	}
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, shotsKey(shot.JobID), shot.ID, data)
	pipe.Expire(ctx, shotsKey(shot.JobID), rowTTL)
	_, err = pipe.Exec(ctx)
	return err
}
