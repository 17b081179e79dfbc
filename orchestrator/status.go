package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// StatusStore persists session status records.
type StatusStore interface {
	Get(ctx context.Context, ref SessionRef) (StatusRecord, error)
	Put(ctx context.Context, rec StatusRecord) error
}

// FileStatusStore keeps the status inside the session's metadata.json.
// Keys it does not own are preserved on update.
type FileStatusStore struct{ layout Layout }

func NewFileStatusStore(l Layout) *FileStatusStore { return &FileStatusStore{layout: l} }

func (s *FileStatusStore) Get(_ context.Context, ref SessionRef) (StatusRecord, error) {
	p, err := s.layout.Lookup(ref)
	if err != nil {
		return StatusRecord{}, err
	}
	var rec StatusRecord
	if err := readJSON(p.Metadata, &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StatusRecord{}, fmt.Errorf("%w: no status for %s", ErrNotFound, ref)
		}
		return StatusRecord{}, fmt.Errorf("read status: %w", err)
	}
	if rec.SessionID == "" {
		rec.SessionID = ref.ID
	}
	rec.Scenario = ref.Scenario
	return rec, nil
}

func (s *FileStatusStore) Put(_ context.Context, rec StatusRecord) error {
	p, err := s.layout.Lookup(rec.Ref())
	if err != nil {
		return err
	}

	doc := map[string]any{}
	if err := readJSON(p.Metadata, &doc); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read status: %w", err)
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for k, v := range fields {
		doc[k] = v
	}
	if rec.Error == "" {
		delete(doc, "error")
	}
	return writeJSON(p.Metadata, doc)
}

// RedisStatusStore keeps each record in the hash session:<id>:status, or
// scenario_session:<id>:status for scenario sessions.
type RedisStatusStore struct{ rdb *redis.Client }

func NewRedisStatusStore(rdb *redis.Client) *RedisStatusStore { return &RedisStatusStore{rdb: rdb} }

func statusKey(ref SessionRef) string {
	if ref.Scenario {
		return "scenario_session:" + ref.ID + ":status"
	}
	return "session:" + ref.ID + ":status"
}

func (s *RedisStatusStore) Get(ctx context.Context, ref SessionRef) (StatusRecord, error) {
	h, err := s.rdb.HGetAll(ctx, statusKey(ref)).Result()
	if err != nil {
		return StatusRecord{}, fmt.Errorf("redis status: %w", err)
	}
	if len(h) == 0 {
		return StatusRecord{}, fmt.Errorf("%w: no status for %s", ErrNotFound, ref)
	}
	rec := StatusRecord{
		SessionID:  ref.ID,
		Scenario:   ref.Scenario,
		Status:     h["status"],
		ScenarioID: h["scenario_id"],
		JobID:      h["job_id"],
		Error:      h["error"],
	}
	rec.CreatedAt, _ = strconv.ParseFloat(h["created_at"], 64)
	rec.UpdatedAt, _ = strconv.ParseFloat(h["updated_at"], 64)
	return rec, nil
}

func (s *RedisStatusStore) Put(ctx context.Context, rec StatusRecord) error {
	key := statusKey(rec.Ref())
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"status", rec.Status,
			"created_at", strconv.FormatFloat(rec.CreatedAt, 'f', -1, 64),
			"updated_at", strconv.FormatFloat(rec.UpdatedAt, 'f', -1, 64),
			"scenario_id", rec.ScenarioID,
			"job_id", rec.JobID,
		)
		if rec.Error != "" {
			pipe.HSet(ctx, key, "error", rec.Error)
		} else {
			pipe.HDel(ctx, key, "error")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis status: %w", err)
	}
	return nil
}
