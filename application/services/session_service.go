package services

import (
	"context"

	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/generation"
	"mindmap-backend/domain/interview"
	"mindmap-backend/domain/layout"
	"mindmap-backend/domain/session"
	"mindmap-backend/domain/versioning"
	pkgerrors "mindmap-backend/pkg/errors"
)

const (
	// GenerationErrorLabel labels the root of a map whose generation failed
	GenerationErrorLabel = "Error de Generación"

	// GenerationErrorDescription tells the user what to do about a failed generation
	GenerationErrorDescription = "Inténtalo de nuevo"

	// RecoveredTitle and RecoveredRootLabel name the map installed when the
	// generation request itself was cut short
	RecoveredTitle     = "Plan Recuperado"
	RecoveredRootLabel = "Estrategia MORETURISMO"
)

// View is everything a client needs to render a map
type View struct {
	SessionID session.ID          `json:"sessionId"`
	Map       aggregates.Snapshot `json:"map"`
	Layout    layout.Result       `json:"layout"`
	Bounds    *layout.Box         `json:"bounds,omitempty"`
	CanUndo   bool                `json:"canUndo"`
	CanRedo   bool                `json:"canRedo"`
	Version   versioning.Version  `json:"version"`
	Team      []string            `json:"team"`
	Expanding string              `json:"expanding,omitempty"`
}

// ExpandResult reports the nodes an expansion added
type ExpandResult struct {
	Added []entities.Node `json:"added"`
	View  View            `json:"view"`
}

// SessionService runs the planning flow: interview, generation, editing and history
type SessionService struct {
	repo      ports.SessionRepository
	generator ports.Generator
	settings  ports.RuntimeSettings
	metrics   ports.MetricsRecorder
	logger    *zap.Logger
}

// NewSessionService creates a new session service
func NewSessionService(
	repo ports.SessionRepository,
	generator ports.Generator,
	settings ports.RuntimeSettings,
	metrics ports.MetricsRecorder,
	logger *zap.Logger,
) *SessionService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		repo:      repo,
		generator: generator,
		settings:  settings,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start validates the source, opens a session and asks the generator for
// clarification questions. Generator failures fall back to the default questions.
func (s *SessionService) Start(ctx context.Context, source interview.ProjectSource) (session.State, error) {
	sess, err := session.New(source)
	if err != nil {
		return session.State{}, err
	}

	content := interview.Truncate(sess.Source().Context(), interview.ClarifyContextLimit)
	questions, err := s.generator.ClarifyIntent(ctx, content)
	if err != nil {
		s.logger.Warn("Clarification failed, using default questions",
			zap.String("session_id", sess.ID().String()),
			zap.Error(err),
		)
		questions = nil
	}
	if err := sess.SetQuestions(questions); err != nil {
		return session.State{}, err
	}

	if err := s.repo.Save(ctx, sess); err != nil {
		return session.State{}, pkgerrors.Wrap(err, "failed to save session")
	}
	s.metrics.SetActiveSessions(s.repo.Count(ctx))

	s.logger.Info("Session started",
		zap.String("session_id", sess.ID().String()),
		zap.String("source_type", string(sess.Source().Type)),
		zap.Int("questions", len(questions)),
	)
	return sess.State(), nil
}

// Get returns the session state
func (s *SessionService) Get(ctx context.Context, id session.ID) (session.State, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return session.State{}, err
	}
	return sess.State(), nil
}

// Delete ends a session
func (s *SessionService) Delete(ctx context.Context, id session.ID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.SetActiveSessions(s.repo.Count(ctx))
	s.logger.Info("Session deleted", zap.String("session_id", id.String()))
	return nil
}

// Questions returns the current questions and answers
func (s *SessionService) Questions(ctx context.Context, id session.ID) ([]interview.Question, interview.Answers, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	qs, answers := sess.Interview()
	return qs, answers, nil
}

// Answer records the selections for one question
func (s *SessionService) Answer(ctx context.Context, id session.ID, idx int, options, other []string) (interview.Answers, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Answer(idx, options, other)
}

// ToggleAll selects or clears every predefined option of one question
func (s *SessionService) ToggleAll(ctx context.Context, id session.ID, idx int) (interview.Answers, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.ToggleAll(idx)
}

// Reformulate asks the generator for a new question set. The current set
// stands unless exactly three questions come back.
func (s *SessionService) Reformulate(ctx context.Context, id session.ID) ([]interview.Question, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	current, answers := sess.Interview()
	content := interview.Truncate(sess.Source().Context(), interview.ReformulateContextLimit)

	proposed, err := s.generator.ReformulateQuestions(ctx, content, current, answers)
	if err != nil {
		s.logger.Warn("Reformulation failed, keeping current questions",
			zap.String("session_id", id.String()),
			zap.Error(err),
		)
		return current, nil
	}

	next := interview.AcceptReformulation(current, proposed)
	if len(proposed) != interview.QuestionCount {
		s.logger.Debug("Reformulation rejected",
			zap.String("session_id", id.String()),
			zap.Int("proposed", len(proposed)),
		)
		return next, nil
	}
	if err := sess.ReplaceQuestions(next); err != nil {
		return nil, err
	}
	qs, _ := sess.Interview()
	return qs, nil
}

// Confirm generates the map from the source and the interview answers (or
// without them when skip is set) and moves the session to editing.
// A failed or empty generation still produces a single-root map. A payload
// with one field of the wrong shape keeps the rest of what was decoded.
func (s *SessionService) Confirm(ctx context.Context, id session.ID, skip bool) (View, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	gen, err := sess.BeginGeneration(skip)
	if err != nil {
		return View{}, err
	}
	completed := false
	defer func() {
		if !completed {
			sess.AbortGeneration()
		}
	}()

	content := interview.Truncate(gen.Source.Context(), interview.GenerateContextLimit)
	clarifications := interview.Truncate(gen.Clarifications, interview.ClarificationContextLimit)

	var m *aggregates.MindMap
	generated, err := s.generator.GenerateMap(ctx, content, clarifications)
	switch {
	case ctx.Err() != nil:
		s.logger.Error("Map generation interrupted",
			zap.String("session_id", id.String()),
			zap.Error(ctx.Err()),
		)
		m = aggregates.NewMindMap(RecoveredTitle, []entities.Node{{
			ID:    valueobjects.RootNodeID,
			Label: RecoveredRootLabel,
			Type:  valueobjects.NodeTypeIdea,
		}}, nil)
		if err == nil {
			err = ctx.Err()
		}
	case err != nil && !generation.IsPartial(err):
		s.logger.Error("Map generation failed",
			zap.String("session_id", id.String()),
			zap.Error(err),
		)
		m = aggregates.NewMindMap(gen.Source.Title(), []entities.Node{{
			ID:          valueobjects.RootNodeID,
			Label:       GenerationErrorLabel,
			Description: GenerationErrorDescription,
			Type:        valueobjects.NodeTypeIdea,
		}}, nil)
	default:
		if err != nil {
			s.logger.Warn("Generated map partly malformed",
				zap.String("session_id", id.String()),
				zap.Error(err),
			)
		}
		// NewMindMap drops dangling edges and substitutes a root for an empty set
		m = aggregates.NewMindMap(gen.Source.Title(), generated.Nodes, generated.Edges)
	}

	sess.CompleteGeneration(m, s.settings.HistoryCapacity())
	completed = true
	s.metrics.RecordEdit("generate", outcome(err))

	s.logger.Info("Map generated",
		zap.String("session_id", id.String()),
		zap.Int("nodes", m.NodeCount()),
		zap.Int("edges", m.EdgeCount()),
		zap.Bool("skipped_interview", skip),
	)
	return s.view(sess)
}

// AddChild adds a node under parentID
func (s *SessionService) AddChild(ctx context.Context, id session.ID, parentID valueobjects.NodeID, fields entities.NodeFields) (entities.Node, View, error) {
	var created entities.Node
	v, err := s.apply(ctx, id, "add_child", func(m *aggregates.MindMap) (*aggregates.MindMap, versioning.Change, error) {
		next, child, err := m.AddChild(parentID, fields)
		if err != nil {
			return nil, versioning.Change{}, err
		}
		created = child
		return next, versioning.Change{
			Type:        versioning.ChangeTypeNodeAdded,
			EntityID:    child.ID.String(),
			Description: "added " + child.Label + " under " + parentID.String(),
		}, nil
	})
	return created, v, err
}

// UpdateNode replaces the supplied fields of nodeID. An assignee must be on the team.
func (s *SessionService) UpdateNode(ctx context.Context, id session.ID, nodeID valueobjects.NodeID, fields entities.NodeFields) (View, error) {
	if fields.IsEmpty() {
		return View{}, pkgerrors.NewValidationError("no fields to update")
	}
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	if fields.Assignee != nil && *fields.Assignee != "" && !sess.HasTeamMember(*fields.Assignee) {
		return View{}, pkgerrors.NewValidationError("assignee is not a team member").
			WithDetail("assignee", *fields.Assignee)
	}
	return s.applyTo(sess, "update_node", func(m *aggregates.MindMap) (*aggregates.MindMap, versioning.Change, error) {
		next, err := m.UpdateNode(nodeID, fields)
		return next, versioning.Change{
			Type:        versioning.ChangeTypeNodeUpdated,
			EntityID:    nodeID.String(),
			Description: "updated " + nodeID.String(),
		}, err
	})
}

// DeleteNode removes nodeID and its edges. The root and the last node are protected.
func (s *SessionService) DeleteNode(ctx context.Context, id session.ID, nodeID valueobjects.NodeID) (View, error) {
	return s.apply(ctx, id, "delete_node", func(m *aggregates.MindMap) (*aggregates.MindMap, versioning.Change, error) {
		next, err := m.DeleteNode(nodeID)
		return next, versioning.Change{
			Type:        versioning.ChangeTypeNodeRemoved,
			EntityID:    nodeID.String(),
			Description: "removed " + nodeID.String(),
		}, err
	})
}

// Rename changes the map title
func (s *SessionService) Rename(ctx context.Context, id session.ID, title string) (View, error) {
	return s.apply(ctx, id, "rename", func(m *aggregates.MindMap) (*aggregates.MindMap, versioning.Change, error) {
		next, err := m.Rename(title)
		return next, versioning.Change{
			Type:        versioning.ChangeTypeRenamed,
			Description: "renamed map",
		}, err
	})
}

// Expand asks the generator for children of nodeID and merges them into the
// map current when the call returns. At most one expansion per session runs
// at a time; a second request gets CONFLICT. Generator failures add nothing.
func (s *SessionService) Expand(ctx context.Context, id session.ID, nodeID valueobjects.NodeID) (ExpandResult, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ExpandResult{}, err
	}
	node, err := sess.BeginExpansion(nodeID)
	if err != nil {
		return ExpandResult{}, err
	}
	finished := false
	defer func() {
		if !finished {
			sess.AbortExpansion(nodeID)
		}
	}()

	suggestions, genErr := s.generator.ExpandNode(ctx, node)
	if genErr != nil {
		s.logger.Warn("Node expansion failed",
			zap.String("session_id", id.String()),
			zap.String("node_id", nodeID.String()),
			zap.Error(genErr),
		)
		suggestions = nil
	}

	added, err := sess.FinishExpansion(nodeID, suggestions)
	finished = true
	if err != nil {
		s.metrics.RecordEdit("expand", "error")
		return ExpandResult{}, err
	}
	s.metrics.RecordEdit("expand", outcome(genErr))

	s.logger.Info("Node expanded",
		zap.String("session_id", id.String()),
		zap.String("node_id", nodeID.String()),
		zap.Int("added", len(added)),
	)

	v, err := s.view(sess)
	if err != nil {
		return ExpandResult{}, err
	}
	if added == nil {
		added = []entities.Node{}
	}
	return ExpandResult{Added: added, View: v}, nil
}

// Undo restores the previous map; a no-op when there is nothing to undo
func (s *SessionService) Undo(ctx context.Context, id session.ID) (View, error) {
	return s.move(ctx, id, "undo", (*session.Session).Undo)
}

// Redo re-applies the last undone map; a no-op when there is nothing to redo
func (s *SessionService) Redo(ctx context.Context, id session.ID) (View, error) {
	return s.move(ctx, id, "redo", (*session.Session).Redo)
}

// View returns the current map with its layout
func (s *SessionService) View(ctx context.Context, id session.ID) (View, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(sess)
}

// Timeline returns the version chronology reachable through undo/redo
func (s *SessionService) Timeline(ctx context.Context, id session.ID) (versioning.Timeline, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return versioning.Timeline{}, err
	}
	st := sess.State()
	if st.Timeline == nil {
		return versioning.Timeline{}, pkgerrors.NewConflictError("the map has not been generated yet").
			WithCode("MAP_NOT_READY")
	}
	return *st.Timeline, nil
}

// AddTeamMember adds name to the session roster
func (s *SessionService) AddTeamMember(ctx context.Context, id session.ID, name string) ([]string, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.AddTeamMember(name)
}

func (s *SessionService) apply(ctx context.Context, id session.ID, op string, edit session.Edit) (View, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.applyTo(sess, op, edit)
}

func (s *SessionService) applyTo(sess *session.Session, op string, edit session.Edit) (View, error) {
	sess.ResizeHistory(s.settings.HistoryCapacity())
	_, version, err := sess.Apply(edit)
	s.metrics.RecordEdit(op, outcome(err))
	if err != nil {
		s.logger.Debug("Edit rejected",
			zap.String("session_id", sess.ID().String()),
			zap.String("operation", op),
			zap.Error(err),
		)
		return View{}, err
	}
	s.logger.Debug("Edit committed",
		zap.String("session_id", sess.ID().String()),
		zap.String("operation", op),
		zap.Int("version", version.Sequence),
	)
	return s.view(sess)
}

func (s *SessionService) move(ctx context.Context, id session.ID, op string, fn func(*session.Session) (bool, error)) (View, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	moved, err := fn(sess)
	if err != nil {
		return View{}, err
	}
	s.metrics.RecordHistory(op, moved)
	return s.view(sess)
}

func (s *SessionService) view(sess *session.Session) (View, error) {
	st := sess.State()
	if st.Map == nil {
		return View{}, pkgerrors.NewConflictError("the map has not been generated yet").
			WithCode("MAP_NOT_READY")
	}

	res := layout.Compute(st.Map.Nodes(), st.Map.Edges(), s.settings.LayoutOptions())
	if res.Topology.Degenerate() {
		s.logger.Debug("Degenerate map topology",
			zap.String("session_id", st.ID.String()),
			zap.Bool("multiple_roots", res.Topology.MultipleRoots),
			zap.Bool("no_root", res.Topology.NoRoot),
			zap.Int("disconnected", len(res.Disconnected)),
		)
	}

	v := View{
		SessionID: st.ID,
		Map:       st.Map.Snapshot(),
		Layout:    res,
		CanUndo:   st.CanUndo,
		CanRedo:   st.CanRedo,
		Team:      st.Team,
	}
	if box, ok := layout.Bounds(res); ok {
		v.Bounds = &box
	}
	if st.Version != nil {
		v.Version = *st.Version
	}
	if expanding, ok := sess.Expanding(); ok {
		v.Expanding = expanding.String()
	}
	return v, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
