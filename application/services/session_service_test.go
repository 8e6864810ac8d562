package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/generation"
	"mindmap-backend/domain/interview"
	"mindmap-backend/domain/layout"
	"mindmap-backend/domain/session"
	pkgerrors "mindmap-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator returns canned responses; expandGate, when set, blocks
// ExpandNode until it is closed.
type fakeGenerator struct {
	questions   []interview.Question
	questionErr error
	reformulate []interview.Question
	generated   generation.GeneratedMap
	generateErr error
	suggestions []entities.NodeFields
	expandErr   error
	expandGate  chan struct{}
	expandCalls int
	panicOn     string
	mu          sync.Mutex

	lastClarifications string
}

func (f *fakeGenerator) ClarifyIntent(ctx context.Context, content string) ([]interview.Question, error) {
	return f.questions, f.questionErr
}

func (f *fakeGenerator) ReformulateQuestions(ctx context.Context, content string, qs []interview.Question, a interview.Answers) ([]interview.Question, error) {
	return f.reformulate, nil
}

func (f *fakeGenerator) GenerateMap(ctx context.Context, content, clarifications string) (generation.GeneratedMap, error) {
	f.mu.Lock()
	f.lastClarifications = clarifications
	f.mu.Unlock()
	if f.panicOn == "generate" {
		panic("generate")
	}
	return f.generated, f.generateErr
}

func (f *fakeGenerator) ExpandNode(ctx context.Context, node entities.Node) ([]entities.NodeFields, error) {
	f.mu.Lock()
	f.expandCalls++
	gate := f.expandGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.panicOn == "expand" {
		panic("expand")
	}
	return f.suggestions, f.expandErr
}

type fakeRepo struct {
	mu       sync.Mutex
	sessions map[session.ID]*session.Session
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: map[session.ID]*session.Session{}}
}

func (r *fakeRepo) Save(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id session.ID) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	return s, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id session.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return pkgerrors.NewNotFoundError("session")
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeRepo) Count(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type countingMetrics struct {
	mu      sync.Mutex
	edits   map[string]int
	history map[string]int
	active  int
}

func (m *countingMetrics) RecordEdit(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[op+":"+outcome]++
}

func (m *countingMetrics) RecordHistory(op string, moved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if moved {
		m.history[op]++
	}
}

func (m *countingMetrics) SetActiveSessions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

func sampleGenerated() generation.GeneratedMap {
	return generation.GeneratedMap{
		Nodes: []entities.Node{
			{ID: "root", Label: "Estrategia Verano", Type: valueobjects.NodeTypeIdea},
			{ID: "a", Label: "Marketing", Type: valueobjects.NodeTypeIdea},
			{ID: "b", Label: "Operaciones", Type: valueobjects.NodeTypeIdea},
			{ID: "c", Label: "Campaña redes", Type: valueobjects.NodeTypeTask},
		},
		Edges: []entities.Edge{
			{ID: "e1", Source: "root", Target: "a"},
			{ID: "e2", Source: "root", Target: "b"},
			{ID: "e3", Source: "a", Target: "c"},
		},
	}
}

type fixture struct {
	svc     *SessionService
	gen     *fakeGenerator
	repo    *fakeRepo
	metrics *countingMetrics
}

func newFixture() *fixture {
	gen := &fakeGenerator{generated: sampleGenerated()}
	repo := newFakeRepo()
	metrics := &countingMetrics{edits: map[string]int{}, history: map[string]int{}}
	settings := ports.StaticSettings{Layout: layout.DefaultOptions(), Capacity: 50}
	return &fixture{
		svc:     NewSessionService(repo, gen, settings, metrics, zap.NewNop()),
		gen:     gen,
		repo:    repo,
		metrics: metrics,
	}
}

func (f *fixture) visualized(t *testing.T) session.ID {
	t.Helper()
	st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "Temporada alta", FileInfo: "plan.pdf"})
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), st.ID, false)
	require.NoError(t, err)
	return st.ID
}

func TestStart(t *testing.T) {
	t.Run("uses generated questions", func(t *testing.T) {
		f := newFixture()
		f.gen.questions = []interview.Question{{Text: "¿Fases o equipos?", Options: []string{"Fases", "Equipos"}}}

		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)
		assert.Equal(t, session.StepClarify, st.Step)
		require.Len(t, st.Questions, 1)
		assert.Equal(t, "¿Fases o equipos?", st.Questions[0].Text)
		assert.Equal(t, 1, f.metrics.active)
	})

	t.Run("falls back to defaults", func(t *testing.T) {
		f := newFixture()
		f.gen.questionErr = errors.New("boom")

		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)
		assert.Equal(t, interview.DefaultQuestions(), st.Questions)
	})

	t.Run("rejects invalid source", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Start(context.Background(), interview.ProjectSource{FileInfo: "virus.exe"})
		assert.True(t, pkgerrors.IsValidation(err))
		assert.Equal(t, 0, f.repo.Count(context.Background()))
	})
}

func TestReformulate(t *testing.T) {
	f := newFixture()
	st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
	require.NoError(t, err)

	f.gen.reformulate = []interview.Question{{Text: "solo una"}}
	qs, err := f.svc.Reformulate(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, interview.DefaultQuestions(), qs)

	f.gen.reformulate = []interview.Question{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	qs, err = f.svc.Reformulate(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", qs[0].Text)
}

func TestConfirm(t *testing.T) {
	t.Run("builds the generated map", func(t *testing.T) {
		f := newFixture()
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x", FileInfo: "informe.docx"})
		require.NoError(t, err)
		_, err = f.svc.Answer(context.Background(), st.ID, 0, []string{"Cronológico (Fases/Tiempo)"}, nil)
		require.NoError(t, err)

		v, err := f.svc.Confirm(context.Background(), st.ID, false)
		require.NoError(t, err)
		assert.Equal(t, "Plan: informe", v.Map.Title)
		assert.Len(t, v.Map.Nodes, 4)
		assert.Len(t, v.Layout.Positions, 4)
		assert.False(t, v.CanUndo)
		assert.Contains(t, f.gen.lastClarifications, "Respuestas: Cronológico (Fases/Tiempo)")

		_, err = f.svc.Confirm(context.Background(), st.ID, false)
		assert.True(t, pkgerrors.IsConflict(err), "a session generates once")
	})

	t.Run("generation error gives a single error root", func(t *testing.T) {
		f := newFixture()
		f.gen.generateErr = errors.New("quota")
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)

		v, err := f.svc.Confirm(context.Background(), st.ID, true)
		require.NoError(t, err)
		require.Len(t, v.Map.Nodes, 1)
		assert.Equal(t, GenerationErrorLabel, v.Map.Nodes[0].Label)
		assert.Equal(t, 1, f.metrics.edits["generate:error"])
		assert.Equal(t, interview.SkipClarification, f.gen.lastClarifications)
	})

	t.Run("empty generation gives the fallback root", func(t *testing.T) {
		f := newFixture()
		f.gen.generated = generation.GeneratedMap{}
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)

		v, err := f.svc.Confirm(context.Background(), st.ID, false)
		require.NoError(t, err)
		require.Len(t, v.Map.Nodes, 1)
		assert.Equal(t, "Estrategia Central", v.Map.Nodes[0].Label)
	})

	t.Run("malformed edges keep the decoded nodes", func(t *testing.T) {
		f := newFixture()
		f.gen.generated, f.gen.generateErr = generation.DecodeMap([]byte(
			`{"nodes": [{"id": "root", "label": "Estrategia"}, {"id": "a", "label": "Campaña"}], "edges": "root->a"}`))
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)

		v, err := f.svc.Confirm(context.Background(), st.ID, false)
		require.NoError(t, err)
		require.Len(t, v.Map.Nodes, 2)
		assert.Equal(t, "Estrategia", v.Map.Nodes[0].Label)
		assert.Empty(t, v.Map.Edges)
	})

	t.Run("malformed nodes give the fallback root", func(t *testing.T) {
		f := newFixture()
		f.gen.generated, f.gen.generateErr = generation.DecodeMap([]byte(
			`{"nodes": "root", "edges": [{"id": "e1", "source": "root", "target": "a"}]}`))
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)

		v, err := f.svc.Confirm(context.Background(), st.ID, false)
		require.NoError(t, err)
		require.Len(t, v.Map.Nodes, 1)
		assert.Equal(t, "Estrategia Central", v.Map.Nodes[0].Label)
	})

	t.Run("unparseable payload gives the error root", func(t *testing.T) {
		f := newFixture()
		f.gen.generated, f.gen.generateErr = generation.DecodeMap([]byte(`{nodes: [`))
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)

		v, err := f.svc.Confirm(context.Background(), st.ID, false)
		require.NoError(t, err)
		require.Len(t, v.Map.Nodes, 1)
		assert.Equal(t, GenerationErrorLabel, v.Map.Nodes[0].Label)
	})

	t.Run("panicking generator releases the generation slot", func(t *testing.T) {
		f := newFixture()
		f.gen.panicOn = "generate"
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)

		assert.Panics(t, func() { _, _ = f.svc.Confirm(context.Background(), st.ID, false) })

		f.gen.panicOn = ""
		v, err := f.svc.Confirm(context.Background(), st.ID, false)
		require.NoError(t, err)
		assert.Len(t, v.Map.Nodes, 4)
	})

	t.Run("cancelled request gives the recovered map", func(t *testing.T) {
		f := newFixture()
		st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		v, err := f.svc.Confirm(ctx, st.ID, false)
		require.NoError(t, err)
		assert.Equal(t, RecoveredTitle, v.Map.Title)
		assert.Equal(t, RecoveredRootLabel, v.Map.Nodes[0].Label)
	})
}

func TestEditing(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)
	ctx := context.Background()

	child, v, err := f.svc.AddChild(ctx, id, "b", entities.NodeFields{})
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultLabel, child.Label)
	assert.Len(t, v.Map.Nodes, 5)
	assert.True(t, v.CanUndo)

	label := "Logística"
	v, err = f.svc.UpdateNode(ctx, id, child.ID, entities.NodeFields{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Version.Sequence)

	v, err = f.svc.DeleteNode(ctx, id, child.ID)
	require.NoError(t, err)
	assert.Len(t, v.Map.Nodes, 4)

	_, err = f.svc.DeleteNode(ctx, id, "root")
	assert.True(t, pkgerrors.IsRootProtected(err))

	_, _, err = f.svc.AddChild(ctx, id, "ghost", entities.NodeFields{})
	assert.True(t, pkgerrors.IsInvalidReference(err))

	_, err = f.svc.UpdateNode(ctx, id, "a", entities.NodeFields{})
	assert.True(t, pkgerrors.IsValidation(err))

	assert.Equal(t, 1, f.metrics.edits["delete_node:error"])
	assert.Equal(t, 1, f.metrics.edits["add_child:success"])
}

func TestUpdateNode_AssigneeMustBeOnTeam(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)
	ctx := context.Background()

	stranger := "Mallory"
	_, err := f.svc.UpdateNode(ctx, id, "a", entities.NodeFields{Assignee: &stranger})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.svc.AddTeamMember(ctx, id, stranger)
	require.NoError(t, err)
	v, err := f.svc.UpdateNode(ctx, id, "a", entities.NodeFields{Assignee: &stranger})
	require.NoError(t, err)
	for _, n := range v.Map.Nodes {
		if n.ID == "a" {
			assert.Equal(t, stranger, n.Assignee)
		}
	}
}

func TestUndoRedo(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)
	ctx := context.Background()

	original, err := f.svc.View(ctx, id)
	require.NoError(t, err)

	_, _, err = f.svc.AddChild(ctx, id, "a", entities.NodeFields{})
	require.NoError(t, err)

	v, err := f.svc.Undo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, original.Map, v.Map)
	assert.True(t, v.CanRedo)

	v, err = f.svc.Redo(ctx, id)
	require.NoError(t, err)
	assert.Len(t, v.Map.Nodes, 5)

	_, err = f.svc.Undo(ctx, id)
	require.NoError(t, err)
	_, _, err = f.svc.AddChild(ctx, id, "b", entities.NodeFields{})
	require.NoError(t, err)
	v, err = f.svc.Redo(ctx, id)
	require.NoError(t, err)
	assert.False(t, v.CanRedo, "a commit after undo clears the redo stack")

	tl, err := f.svc.Timeline(ctx, id)
	require.NoError(t, err)
	assert.Len(t, tl.Versions, 2)
	assert.Equal(t, 1, tl.Cursor)
	assert.Equal(t, 1, f.metrics.history["redo"])
}

func TestMapNotReady(t *testing.T) {
	f := newFixture()
	st, err := f.svc.Start(context.Background(), interview.ProjectSource{Content: "x"})
	require.NoError(t, err)

	_, err = f.svc.View(context.Background(), st.ID)
	assert.True(t, pkgerrors.IsConflict(err))
	_, err = f.svc.Timeline(context.Background(), st.ID)
	assert.True(t, pkgerrors.IsConflict(err))
	_, err = f.svc.Undo(context.Background(), st.ID)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestExpand(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)
	f.gen.suggestions = []entities.NodeFields{
		entities.Suggestion("x", "", valueobjects.NodeTypeIdea),
		entities.Suggestion("y", "", valueobjects.NodeTypeTask),
	}

	res, err := f.svc.Expand(context.Background(), id, "a")
	require.NoError(t, err)
	require.Len(t, res.Added, 2)
	assert.Len(t, res.View.Map.Nodes, 6)
	assert.Len(t, res.View.Layout.Positions, 6)

	a := res.View.Layout.Positions["a"]
	c := res.View.Layout.Positions["c"]
	y := res.View.Layout.Positions[res.Added[1].ID]
	assert.Equal(t, (c.Y+y.Y)/2, a.Y)
}

func TestExpand_FailureAddsNothing(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)
	f.gen.expandErr = pkgerrors.NewMalformedPayloadError("suggestions", nil)

	res, err := f.svc.Expand(context.Background(), id, "a")
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.NotNil(t, res.Added)
	assert.False(t, res.View.CanUndo)
}

func TestExpand_PanicReleasesSlot(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)
	f.gen.panicOn = "expand"

	assert.Panics(t, func() { _, _ = f.svc.Expand(context.Background(), id, "a") })

	f.gen.panicOn = ""
	f.gen.suggestions = []entities.NodeFields{entities.Suggestion("x", "", valueobjects.NodeTypeIdea)}
	res, err := f.svc.Expand(context.Background(), id, "a")
	require.NoError(t, err)
	assert.Len(t, res.Added, 1)
	assert.Empty(t, res.View.Expanding)
}

func TestExpand_SingleInFlight(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)
	gate := make(chan struct{})
	f.gen.expandGate = gate
	f.gen.suggestions = []entities.NodeFields{entities.Suggestion("x", "", valueobjects.NodeTypeIdea)}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Expand(context.Background(), id, "a")
		done <- err
	}()

	require.Eventually(t, func() bool {
		f.gen.mu.Lock()
		defer f.gen.mu.Unlock()
		return f.gen.expandCalls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.svc.Expand(context.Background(), id, "b")
	assert.True(t, pkgerrors.IsConflict(err))

	v, err := f.svc.View(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "a", v.Expanding)

	close(gate)
	require.NoError(t, <-done)

	v, err = f.svc.View(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, v.Expanding)
	assert.Len(t, v.Map.Nodes, 5)
}

func TestDelete(t *testing.T) {
	f := newFixture()
	id := f.visualized(t)

	require.NoError(t, f.svc.Delete(context.Background(), id))
	_, err := f.svc.Get(context.Background(), id)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(f.svc.Delete(context.Background(), id)))
	assert.Equal(t, 0, f.metrics.active)
}
