package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/maastricht-university/session-insights/analysis"
	"github.com/maastricht-university/session-insights/media"
	"github.com/maastricht-university/session-insights/report"
)

// Conformer merges raw recordings and probes the result.
type Conformer interface {
	Conform(ctx context.Context, inputs []string, outVideo, outAudio string) error
	Probe(ctx context.Context, path string) (media.ProbeInfo, error)
}

type SpeechAnalyzer interface {
	Analyze(ctx context.Context, wavPath string) (analysis.AudioMetrics, error)
}

type SemanticAnalyzer interface {
	Analyze(ctx context.Context, transcript string, segments []analysis.Segment, wordCount, fillerCount int) analysis.SemanticMetrics
}

type FacialAnalyzer interface {
	Analyze(ctx context.Context, videoPath string) (analysis.VideoMetrics, error)
}

// Analyzers are constructed once and shared by every job.
type Analyzers struct {
	Media    Conformer
	Speech   SpeechAnalyzer
	Semantic SemanticAnalyzer
	Facial   FacialAnalyzer
}

type Pipeline struct {
	layout  Layout
	status  StatusStore
	an      Analyzers
	workers int // concurrent facial analyses per job
	log     *logrus.Entry
	now     func() time.Time
}

func NewPipeline(layout Layout, status StatusStore, an Analyzers, workers int, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		layout:  layout,
		status:  status,
		an:      an,
		workers: max(1, workers),
		log:     log.WithField("component", "pipeline"),
		now:     time.Now,
	}
}

// Run analyzes one session end to end and persists its report. The status
// record moves to processing, then to completed or failed.
func (p *Pipeline) Run(ctx context.Context, job Job) (rep *report.Report, err error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	log := p.log.WithFields(logrus.Fields{"session_id": job.SessionID, "job_id": job.ID})

	paths := p.layout.Session(job.SessionID, job.Scenario)
	if fi, statErr := os.Stat(paths.Dir); statErr != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: session directory %s", analysis.ErrMissingInput, paths.Dir)
	}

	rec, err := p.status.Get(ctx, paths.Ref())
	switch {
	case errors.Is(err, ErrNotFound):
		rec = StatusRecord{SessionID: job.SessionID, Status: StatusCreated, CreatedAt: unixSeconds(p.now())}
	case err != nil:
		return nil, err
	}
	rec.Scenario = job.Scenario
	rec.JobID = job.ID
	if job.ScenarioID != "" {
		rec.ScenarioID = job.ScenarioID
	}
	if job.Scenario && rec.ScenarioID == "" {
		rec.ScenarioID = scenarioFromMetadata(paths)
	}
	if err := p.setStatus(ctx, &rec, StatusProcessing, ""); err != nil {
		return nil, err
	}

	defer func() {
		final, msg := StatusCompleted, ""
		if err != nil {
			final, msg = StatusFailed, err.Error()
		}
		// the job context may be gone; the final status must still land
		if serr := p.setStatus(context.WithoutCancel(ctx), &rec, final, msg); serr != nil {
			log.WithError(serr).Error("status update failed")
		}
	}()
	// runs before the status update above
	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, panicError(log, r)
		}
	}()

	log.Info("analysis started")
	start := p.now()
	rep, err = p.analyze(ctx, paths, rec, log)
	if err != nil {
		log.WithError(err).Error("analysis failed")
		return nil, err
	}
	if err = writeJSON(paths.Report, rep); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	log.WithField("elapsed", p.now().Sub(start).Round(time.Millisecond)).Info("analysis completed")
	return rep, nil
}

func (p *Pipeline) analyze(ctx context.Context, paths SessionPaths, rec StatusRecord, log *logrus.Entry) (*report.Report, error) {
	recordings, err := paths.Recordings()
	if err != nil {
		return nil, err
	}

	var steps []report.Step
	if paths.Scenario {
		if rec.ScenarioID == "" {
			return nil, fmt.Errorf("%w: scenario session %s has no scenario_id", analysis.ErrMissingInput, paths.ID)
		}
		if steps, err = p.loadSteps(rec.ScenarioID); err != nil {
			return nil, err
		}
	}

	if err := p.an.Media.Conform(ctx, sortedPaths(recordings), paths.MergedVideo, paths.Audio); err != nil {
		return nil, err
	}

	duration := 0.0
	if info, err := p.an.Media.Probe(ctx, paths.MergedVideo); err != nil {
		log.WithError(err).Warn("probe failed, session duration unknown")
	} else {
		duration = info.Duration
	}

	// scenario sessions analyze the conformed video; regular sessions
	// analyze each raw clip
	videos := recordings
	if paths.Scenario {
		videos = map[string]string{"user": paths.MergedVideo}
	}

	speech, semantic, facial := p.runAnalyzers(ctx, paths.Audio, videos, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := report.NewMetadata(paths.ID, len(recordings), rec.ScenarioID, fromUnix(rec.CreatedAt), duration)
	return report.Build(report.Inputs{
		Metadata: meta,
		Speech:   speech,
		Semantic: semantic,
		Video:    facial,
		Steps:    steps,
	}, p.now()), nil
}

// runAnalyzers runs the speech then semantic chain next to one facial
// analysis per participant. Analyzer failures become unavailable outcomes
// so no analyzer cancels another.
func (p *Pipeline) runAnalyzers(ctx context.Context, wav string, videos map[string]string, log *logrus.Entry) (
	analysis.Outcome[analysis.AudioMetrics], analysis.SemanticMetrics, map[string]analysis.Outcome[analysis.VideoMetrics],
) {
	var (
		speech   analysis.Outcome[analysis.AudioMetrics]
		semantic analysis.SemanticMetrics
		mu       sync.Mutex
		facial   = make(map[string]analysis.Outcome[analysis.VideoMetrics], len(videos))
	)

	var g errgroup.Group
	g.SetLimit(p.workers + 1)

	g.Go(func() error {
		var m analysis.AudioMetrics
		err := protect(log, func() (err error) {
			m, err = p.an.Speech.Analyze(ctx, wav)
			return err
		})
		if err != nil {
			log.WithError(err).Warn("speech analysis unavailable, using neutral defaults")
			speech = analysis.Unavailable[analysis.AudioMetrics](err.Error())
			m = analysis.AudioMetrics{}
		} else {
			speech = analysis.Available(m)
		}
		err = protect(log, func() error {
			semantic = p.an.Semantic.Analyze(ctx, m.Transcript, m.Segments, m.WordCount, m.FillerCount)
			return nil
		})
		if err != nil {
			semantic = analysis.FallbackMetrics(m.Transcript, m.Segments, m.FillerCount, err.Error())
		}
		return nil
	})

	for id, video := range videos {
		id, video := id, video
		g.Go(func() error {
			var m analysis.VideoMetrics
			err := protect(log, func() (err error) {
				m, err = p.an.Facial.Analyze(ctx, video)
				return err
			})
			o := analysis.Available(m)
			if err != nil {
				log.WithError(err).WithField("participant", id).Warn("video analysis unavailable, using empty timeline")
				o = analysis.Unavailable[analysis.VideoMetrics](err.Error())
			}
			mu.Lock()
			facial[id] = o
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return speech, semantic, facial
}

// protect runs fn and reports a panic inside it as an ErrPanic error.
func protect(log *logrus.Entry, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(log, r)
		}
	}()
	return fn()
}

func panicError(log *logrus.Entry, r any) error {
	log.WithField("stack", string(debug.Stack())).Errorf("recovered panic: %v", r)
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

func (p *Pipeline) loadSteps(scenarioID string) ([]report.Step, error) {
	data, err := os.ReadFile(p.layout.ScenarioMetadata(scenarioID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: scenario %s", analysis.ErrMissingInput, scenarioID)
		}
		return nil, err
	}
	return report.ParseSteps(data)
}

// scenarioFromMetadata reads scenario_id from the session's metadata.json,
// which the recording front end writes even when status lives in redis.
func scenarioFromMetadata(paths SessionPaths) string {
	var doc struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := readJSON(paths.Metadata, &doc); err != nil {
		return ""
	}
	return doc.ScenarioID
}

func (p *Pipeline) setStatus(ctx context.Context, rec *StatusRecord, status, msg string) error {
	rec.Status = status
	rec.Error = msg
	rec.UpdatedAt = unixSeconds(p.now())
	if err := p.status.Put(ctx, *rec); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// Report returns the persisted report of a session as raw JSON. Without
// scenario a regular session of that ID is preferred.
func (p *Pipeline) Report(ctx context.Context, sessionID string, scenario bool) ([]byte, error) {
	paths, err := p.resolve(sessionID, scenario)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(paths.Report)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	rec, err := p.status.Get(ctx, paths.Ref())
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusProcessing {
		return nil, ErrStillProcessing
	}
	return nil, fmt.Errorf("%w: no report for %s (status %s)", ErrNotFound, paths.Ref(), rec.Status)
}

// Status returns the status record of a session.
func (p *Pipeline) Status(ctx context.Context, sessionID string, scenario bool) (StatusRecord, error) {
	paths, err := p.resolve(sessionID, scenario)
	if err != nil {
		return StatusRecord{}, err
	}
	return p.status.Get(ctx, paths.Ref())
}

func (p *Pipeline) resolve(sessionID string, scenario bool) (SessionPaths, error) {
	if scenario {
		return p.layout.Lookup(SessionRef{ID: sessionID, Scenario: true})
	}
	return p.layout.Find(sessionID)
}

func unixSeconds(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }

func fromUnix(sec float64) time.Time {
	if sec <= 0 {
		return time.Now()
	}
	return time.Unix(0, int64(sec*1e9))
}
