package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maastricht-university/session-insights/analysis"
)

// Layout resolves session and scenario paths under the storage root:
//
//	<root>/<id>/{raw,merged,audio,report}/ and <root>/<id>/metadata.json
//	<root>/scenario_sessions/<id>/...
//	<root>/scenarios/<scenario_id>/metadata.json
type Layout struct{ Root string }

type SessionPaths struct {
	ID          string
	Scenario    bool
	Dir         string
	Raw         string
	MergedVideo string
	Audio       string
	Report      string
	Metadata    string
}

func (l Layout) Session(id string, scenario bool) SessionPaths {
	dir := filepath.Join(l.Root, id)
	video, audio := "full_session.mp4", "full_audio.wav"
	if scenario {
		dir = filepath.Join(l.Root, "scenario_sessions", id)
		video, audio = "user_session.mp4", "user_audio.wav"
	}
	return SessionPaths{
		ID:          id,
		Scenario:    scenario,
		Dir:         dir,
		Raw:         filepath.Join(dir, "raw"),
		MergedVideo: filepath.Join(dir, "merged", video),
		Audio:       filepath.Join(dir, "audio", audio),
		Report:      filepath.Join(dir, "report", "report.json"),
		Metadata:    filepath.Join(dir, "metadata.json"),
	}
}

func (p SessionPaths) Ref() SessionRef { return SessionRef{ID: p.ID, Scenario: p.Scenario} }

// Lookup resolves an existing session in the namespace ref names.
func (l Layout) Lookup(ref SessionRef) (SessionPaths, error) {
	if ref.ID == "" || strings.ContainsAny(ref.ID, `/\`) || ref.ID == "." || ref.ID == ".." {
		return SessionPaths{}, fmt.Errorf("%w: invalid session id %q", ErrNotFound, ref.ID)
	}
	p := l.Session(ref.ID, ref.Scenario)
	if fi, err := os.Stat(p.Dir); err != nil || !fi.IsDir() {
		return SessionPaths{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return p, nil
}

// Find locates an existing session by bare ID. A regular session shadows a
// scenario session with the same ID.
func (l Layout) Find(id string) (SessionPaths, error) {
	p, err := l.Lookup(SessionRef{ID: id})
	if err == nil {
		return p, nil
	}
	return l.Lookup(SessionRef{ID: id, Scenario: true})
}

// ScenarioMetadata is the authored scenario document holding the steps.
func (l Layout) ScenarioMetadata(scenarioID string) string {
	return filepath.Join(l.Root, "scenarios", scenarioID, "metadata.json")
}

// Recordings lists the raw participant clips keyed by participant ID (the
// file name without extension). Scenario sessions have the single clip
// raw/user.webm.
func (p SessionPaths) Recordings() (map[string]string, error) {
	if p.Scenario {
		user := filepath.Join(p.Raw, "user.webm")
		if _, err := os.Stat(user); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: no user recording in %s", analysis.ErrMissingInput, p.Raw)
			}
			return nil, err
		}
		return map[string]string{"user": user}, nil
	}

	files, err := filepath.Glob(filepath.Join(p.Raw, "*.webm"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no raw recordings in %s", analysis.ErrMissingInput, p.Raw)
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))] = f
	}
	return out, nil
}

// sortedPaths returns the recording paths in participant ID order, which is
// also the input order of the side-by-side merge.
func sortedPaths(recs map[string]string) []string {
	ids := make([]string, 0, len(recs))
	for id := range recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	paths := make([]string, len(ids))
	for i, id := range ids {
		paths[i] = recs[id]
	}
	return paths
}
