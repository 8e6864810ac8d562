package ports

import (
	"context"

	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/generation"
	"mindmap-backend/domain/interview"
	"mindmap-backend/domain/layout"
	"mindmap-backend/domain/session"
)

// Generator is the AI collaborator that proposes questions, maps and
// node expansions. Implementations return errors for transport failures
// and MALFORMED_PAYLOAD errors for unusable output; callers degrade.
type Generator interface {
	// ClarifyIntent proposes structural questions for the source content
	ClarifyIntent(ctx context.Context, content string) ([]interview.Question, error)

	// ReformulateQuestions proposes a new question set keeping the answered ones
	ReformulateQuestions(ctx context.Context, content string, questions []interview.Question, answers interview.Answers) ([]interview.Question, error)

	// GenerateMap builds a node/edge tree from the source and the clarifications
	GenerateMap(ctx context.Context, content, clarifications string) (generation.GeneratedMap, error)

	// ExpandNode proposes child nodes for node
	ExpandNode(ctx context.Context, node entities.Node) ([]entities.NodeFields, error)
}

// SessionRepository stores live planning sessions
type SessionRepository interface {
	// Save stores a session (create or replace)
	Save(ctx context.Context, s *session.Session) error

	// GetByID retrieves a session; NOT_FOUND when absent or expired
	GetByID(ctx context.Context, id session.ID) (*session.Session, error)

	// Delete removes a session; NOT_FOUND when absent
	Delete(ctx context.Context, id session.ID) error

	// Count returns the number of live sessions
	Count(ctx context.Context) int
}

// StoreStats are the counters of a bounded session repository
type StoreStats struct {
	Sessions  int   `json:"sessions"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
}

// StatsReporter is implemented by repositories that track evictions
type StatsReporter interface {
	Stats() StoreStats
}

// RuntimeSettings exposes the values that may change while the server runs
type RuntimeSettings interface {
	LayoutOptions() layout.Options
	HistoryCapacity() int
}

// MetricsRecorder receives business events
type MetricsRecorder interface {
	RecordEdit(operation, outcome string)
	RecordHistory(operation string, moved bool)
	SetActiveSessions(n int)
}

// StaticSettings is a fixed RuntimeSettings
type StaticSettings struct {
	Layout   layout.Options
	Capacity int
}

// LayoutOptions implements RuntimeSettings
func (s StaticSettings) LayoutOptions() layout.Options { return s.Layout }

// HistoryCapacity implements RuntimeSettings
func (s StaticSettings) HistoryCapacity() int { return s.Capacity }

// NopMetrics discards every event
type NopMetrics struct{}

func (NopMetrics) RecordEdit(string, string)  {}
func (NopMetrics) RecordHistory(string, bool) {}
func (NopMetrics) SetActiveSessions(int)      {}
