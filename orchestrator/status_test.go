package orchestrator

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStatusStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStatusStore(rdb), mr
}

func TestRedisStatusStore(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, SessionRef{ID: "s1"})
	assert.ErrorIs(t, err, ErrNotFound)

	rec := StatusRecord{SessionID: "s1", Status: StatusFailed, CreatedAt: 1714550000.25, ScenarioID: "scn", Error: "boom"}
	require.NoError(t, store.Put(ctx, rec))
	assert.Equal(t, "failed", mr.HGet("session:s1:status", "status"))

	got, err := store.Get(ctx, SessionRef{ID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	rec.Status, rec.Error = StatusCompleted, ""
	require.NoError(t, store.Put(ctx, rec))
	got, err = store.Get(ctx, SessionRef{ID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.Empty(t, mr.HGet("session:s1:status", "error"))
}

func TestRedisStatusStore_Unreachable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), SessionRef{ID: "s1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStatusStore_DrivesPipeline(t *testing.T) {
	store, _ := newRedisStore(t)
	f := newFixture(t)
	f.session(t, "r1", false, "A.webm")

	an := f.pipeline(fakeSpeech{m: threeSegmentSpeech()}, fakeFacial{"A.webm": samples(1.0, "happy")}).an
	p := NewPipeline(f.layout, store, an, 1, testLog())

	_, err := p.Run(context.Background(), Job{SessionID: "r1"})
	require.NoError(t, err)

	rec, err := p.Status(context.Background(), "r1", false)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.NotEmpty(t, rec.JobID)

	b, err := p.Report(context.Background(), "r1", false)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"session_type": "simulation"`)
}

func TestFileStatusStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.Put(ctx, StatusRecord{SessionID: "none", Status: StatusCreated})
	assert.ErrorIs(t, err, ErrNotFound)

	paths := f.session(t, "s1", false)
	_, err = f.store.Get(ctx, SessionRef{ID: "s1"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(paths.Metadata, []byte(`{"session_id":"s1","status":"created","created_at":1714550000,"chunks":4}`), 0o644))
	rec, err := f.store.Get(ctx, SessionRef{ID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, rec.Status)
	assert.Equal(t, 1714550000.0, rec.CreatedAt)

	rec.Status, rec.Error = StatusFailed, "ffmpeg merge: exit status 1"
	require.NoError(t, f.store.Put(ctx, rec))
	rec.Status, rec.Error = StatusCompleted, ""
	require.NoError(t, f.store.Put(ctx, rec))

	var doc map[string]any
	require.NoError(t, readJSON(paths.Metadata, &doc))
	assert.Equal(t, "completed", doc["status"])
	assert.Equal(t, 4.0, doc["chunks"])
	assert.NotContains(t, doc, "error")
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/data"}

	p := l.Session("abc", false)
	assert.Equal(t, "/data/abc/merged/full_session.mp4", p.MergedVideo)
	assert.Equal(t, "/data/abc/audio/full_audio.wav", p.Audio)
	assert.Equal(t, "/data/abc/report/report.json", p.Report)

	s := l.Session("abc", true)
	assert.Equal(t, "/data/scenario_sessions/abc/merged/user_session.mp4", s.MergedVideo)
	assert.Equal(t, "/data/scenario_sessions/abc/audio/user_audio.wav", s.Audio)
	assert.Equal(t, "/data/scenarios/scn/metadata.json", l.ScenarioMetadata("scn"))

	for _, bad := range []string{"", ".", "..", "a/b"} {
		_, err := l.Find(bad)
		assert.ErrorIs(t, err, ErrNotFound, bad)
		_, err = l.Lookup(SessionRef{ID: bad, Scenario: true})
		assert.ErrorIs(t, err, ErrNotFound, bad)
	}
}

func TestRecordings(t *testing.T) {
	f := newFixture(t)
	p := f.session(t, "s1", false, "therapist.webm", "client.webm", "notes.txt")

	recs, err := p.Recordings()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"client":    p.Raw + "/client.webm",
		"therapist": p.Raw + "/therapist.webm",
	}, recs)
	assert.Equal(t, []string{p.Raw + "/client.webm", p.Raw + "/therapist.webm"}, sortedPaths(recs))
}

func TestFileStatusStore_SharedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := f.session(t, "dup", false, "A.webm")
	scenario := f.session(t, "dup", true, "user.webm")
	require.NoError(t, writeJSON(regular.Metadata, map[string]any{"session_id": "dup", "status": StatusCompleted}))
	require.NoError(t, writeJSON(scenario.Metadata, map[string]any{"session_id": "dup", "status": StatusCreated, "scenario_id": "scn"}))
	require.NoError(t, writeJSON(f.layout.ScenarioMetadata("scn"), map[string]any{"steps": []any{}}))

	p := f.pipeline(fakeSpeech{m: threeSegmentSpeech()}, fakeFacial{"user_session.mp4": samples(1.0, "happy")})
	_, err := p.Run(ctx, Job{SessionID: "dup", Scenario: true})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, readJSON(regular.Metadata, &doc))
	assert.Equal(t, StatusCompleted, doc["status"])
	assert.NotContains(t, doc, "job_id")

	rec, err := p.Status(ctx, "dup", true)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "scn", rec.ScenarioID)
	assert.NotEmpty(t, rec.JobID)
	assert.True(t, rec.Scenario)

	rec, err = p.Status(ctx, "dup", false)
	require.NoError(t, err)
	assert.Empty(t, rec.JobID)
	assert.FileExists(t, scenario.Report)
	assert.NoFileExists(t, regular.Report)
}

func TestRedisStatusStore_SeparateNamespaces(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, StatusRecord{SessionID: "dup", Status: StatusCompleted}))
	require.NoError(t, store.Put(ctx, StatusRecord{SessionID: "dup", Scenario: true, Status: StatusProcessing}))
	assert.Equal(t, "completed", mr.HGet("session:dup:status", "status"))
	assert.Equal(t, "processing", mr.HGet("scenario_session:dup:status", "status"))

	got, err := store.Get(ctx, SessionRef{ID: "dup", Scenario: true})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.True(t, got.Scenario)
}
