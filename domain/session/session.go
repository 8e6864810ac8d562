// Package session holds the per-user planning state: the interview, the
// current map and its history. All state changes go through Session methods,
// which serialize access with an internal mutex.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/interview"
	"mindmap-backend/domain/versioning"
	pkgerrors "mindmap-backend/pkg/errors"
)

// ID identifies a session
type ID string

// NewID generates a new session id
func NewID() ID {
	return ID("session-" + uuid.New().String())
}

func (id ID) String() string { return string(id) }

// Step is the stage of the planning flow
type Step string

const (
	StepCreate    Step = "create"
	StepClarify   Step = "clarify"
	StepVisualize Step = "visualize"
)

// MaxTeamMembers bounds the team roster
const MaxTeamMembers = 50

// DefaultTeam is the roster a new session starts with
func DefaultTeam() []string {
	return []string{"Ana", "Carlos", "Dirección"}
}

// Edit computes a new map from the current one and describes the change
type Edit func(current *aggregates.MindMap) (*aggregates.MindMap, versioning.Change, error)

// State is a read-only copy of a session
type State struct {
	ID        ID                      `json:"id"`
	Step      Step                    `json:"step"`
	Source    interview.ProjectSource `json:"source"`
	Questions []interview.Question    `json:"questions"`
	Answers   interview.Answers       `json:"answers"`
	Team      []string                `json:"team"`
	Map       *aggregates.MindMap     `json:"-"`
	CanUndo   bool                    `json:"canUndo"`
	CanRedo   bool                    `json:"canRedo"`
	Version   *versioning.Version     `json:"version,omitempty"`
	Timeline  *versioning.Timeline    `json:"-"`
	Busy      bool                    `json:"busy"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// Session is a single planning flow
type Session struct {
	mu sync.Mutex

	id        ID
	step      Step
	source    interview.ProjectSource
	questions []interview.Question
	answers   interview.Answers
	team      []string
	history   *versioning.History

	generating bool
	expanding  valueobjects.NodeID

	createdAt time.Time
	updatedAt time.Time
}

// New starts a session in the clarify step for a validated source
func New(source interview.ProjectSource) (*Session, error) {
	source = source.Normalized()
	if err := source.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	questions := interview.DefaultQuestions()
	return &Session{
		id:        NewID(),
		step:      StepClarify,
		source:    source,
		questions: questions,
		answers:   interview.NewAnswers(len(questions)),
		team:      DefaultTeam(),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ID returns the session id
func (s *Session) ID() ID {
	return s.id
}

// UpdatedAt returns the time of the last change
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Source returns the project source
func (s *Session) Source() interview.ProjectSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// State returns a copy of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:        s.id,
		Step:      s.step,
		Source:    s.source,
		Questions: interview.CloneQuestions(s.questions),
		Answers:   s.answers.Resize(len(s.answers)),
		Team:      append([]string(nil), s.team...),
		Busy:      s.generating || !s.expanding.IsZero(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.history != nil {
		st.Map = s.history.Current()
		st.CanUndo = s.history.CanUndo()
		st.CanRedo = s.history.CanRedo()
		v := s.history.CurrentVersion()
		st.Version = &v
		tl := s.history.Timeline()
		st.Timeline = &tl
	}
	return st
}

// Interview returns the current questions and answers
func (s *Session) Interview() ([]interview.Question, interview.Answers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return interview.CloneQuestions(s.questions), s.answers.Resize(len(s.answers))
}

// SetQuestions replaces the question set, keeping answers aligned by index
func (s *Session) SetQuestions(questions []interview.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepClarify {
		return stepError(s.step, StepClarify)
	}
	questions = interview.OrDefault(questions)
	s.questions = interview.CloneQuestions(questions)
	s.answers = s.answers.Resize(len(questions))
	s.touch()
	return nil
}

// ReplaceQuestions installs a reformulated set. Answers are cleared because
// the indices no longer refer to the same questions.
func (s *Session) ReplaceQuestions(questions []interview.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepClarify {
		return stepError(s.step, StepClarify)
	}
	s.questions = interview.CloneQuestions(interview.OrDefault(questions))
	s.answers = interview.NewAnswers(len(s.questions))
	s.touch()
	return nil
}

// Answer records the selections for question idx
func (s *Session) Answer(idx int, options, other []string) (interview.Answers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepClarify {
		return nil, stepError(s.step, StepClarify)
	}
	if idx < 0 || idx >= len(s.questions) {
		return nil, pkgerrors.NewValidationError("question index out of range").
			WithDetail("index", idx).
			WithDetail("questions", len(s.questions))
	}
	s.answers = s.answers.Set(idx, options, other)
	s.touch()
	return s.answers.Resize(len(s.answers)), nil
}

// ToggleAll selects or clears every predefined option of question idx
func (s *Session) ToggleAll(idx int) (interview.Answers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepClarify {
		return nil, stepError(s.step, StepClarify)
	}
	if idx < 0 || idx >= len(s.questions) {
		return nil, pkgerrors.NewValidationError("question index out of range").
			WithDetail("index", idx)
	}
	s.answers = s.answers.ToggleAll(idx, s.questions[idx])
	s.touch()
	return s.answers.Resize(len(s.answers)), nil
}

// Generation carries what the generator needs to build a map
type Generation struct {
	Source         interview.ProjectSource
	Clarifications string
}

// BeginGeneration marks a generation in flight. Only one may run at a time.
// With skip the interview answers are ignored.
func (s *Session) BeginGeneration(skip bool) (Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepClarify {
		return Generation{}, stepError(s.step, StepClarify)
	}
	if s.generating {
		return Generation{}, pkgerrors.NewConflictError("a map is already being generated").
			WithCode("GENERATION_IN_FLIGHT")
	}
	s.generating = true

	clarifications := interview.SkipClarification
	if !skip {
		clarifications = interview.Combine(s.questions, s.answers)
	}
	return Generation{Source: s.source, Clarifications: clarifications}, nil
}

// CompleteGeneration installs m as the first map of a fresh history and
// moves the session to the visualize step.
func (s *Session) CompleteGeneration(m *aggregates.MindMap, historyCapacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	s.history = versioning.NewHistory(m, historyCapacity)
	s.step = StepVisualize
	s.touch()
}

// AbortGeneration clears the in-flight flag without changing the map
func (s *Session) AbortGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
}

// Map returns the current map
func (s *Session) Map() (*aggregates.MindMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return nil, mapNotReady()
	}
	return s.history.Current(), nil
}

// Apply runs edit against the current map and commits the result. A failing
// edit leaves the history untouched.
func (s *Session) Apply(edit Edit) (*aggregates.MindMap, versioning.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return nil, versioning.Version{}, mapNotReady()
	}
	next, change, err := edit(s.history.Current())
	if err != nil {
		return nil, versioning.Version{}, err
	}
	v := s.history.Commit(next, change)
	s.touch()
	return next, v, nil
}

// BeginExpansion reserves the single expansion slot for nodeID and returns
// the node to expand.
func (s *Session) BeginExpansion(nodeID valueobjects.NodeID) (entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return entities.Node{}, mapNotReady()
	}
	if !s.expanding.IsZero() {
		return entities.Node{}, pkgerrors.NewConflictError("another node is being expanded").
			WithCode("EXPANSION_IN_FLIGHT").
			WithDetail("nodeId", s.expanding.String())
	}
	node, ok := s.history.Current().Node(nodeID)
	if !ok {
		return entities.Node{}, pkgerrors.NewInvalidReferenceError(nodeID.String())
	}
	s.expanding = nodeID
	return node, nil
}

// FinishExpansion releases the expansion slot and merges suggestions under
// nodeID in the map current at this moment, which may differ from the map
// the expansion started from. Zero suggestions commit nothing.
func (s *Session) FinishExpansion(nodeID valueobjects.NodeID, suggestions []entities.NodeFields) ([]entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expanding = ""
	if s.history == nil {
		return nil, mapNotReady()
	}
	if len(suggestions) == 0 {
		return nil, nil
	}

	next, added, err := s.history.Current().MergeGenerated(nodeID, suggestions)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return nil, nil
	}
	s.history.Commit(next, versioning.Change{
		Type:        versioning.ChangeTypeExpanded,
		EntityID:    nodeID.String(),
		Description: "expanded with suggestions",
	})
	s.touch()
	return added, nil
}

// AbortExpansion releases the expansion slot held for nodeID without
// touching the map. A slot held for another node is left alone.
func (s *Session) AbortExpansion(nodeID valueobjects.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expanding == nodeID {
		s.expanding = ""
	}
}

// Expanding returns the node whose expansion is in flight, if any
func (s *Session) Expanding() (valueobjects.NodeID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expanding, !s.expanding.IsZero()
}

// Undo restores the previous map; false when there is nothing to undo
func (s *Session) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return false, mapNotReady()
	}
	moved := s.history.Undo()
	if moved {
		s.touch()
	}
	return moved, nil
}

// Redo re-applies the last undone map; false when there is nothing to redo
func (s *Session) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return false, mapNotReady()
	}
	moved := s.history.Redo()
	if moved {
		s.touch()
	}
	return moved, nil
}

// ResizeHistory applies a new undo capacity
func (s *Session) ResizeHistory(capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history != nil && s.history.Capacity() != capacity {
		s.history.SetCapacity(capacity)
	}
}

// Team returns the roster
func (s *Session) Team() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.team...)
}

// AddTeamMember appends name to the roster unless it is blank or already
// present (case-insensitive), returning the roster.
func (s *Session) AddTeamMember(name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.NewValidationError("team member name cannot be empty")
	}
	for _, m := range s.team {
		if strings.EqualFold(m, name) {
			return append([]string(nil), s.team...), nil
		}
	}
	if len(s.team) >= MaxTeamMembers {
		return nil, pkgerrors.NewValidationError("team is full").WithDetail("max", MaxTeamMembers)
	}
	s.team = append(s.team, name)
	s.touch()
	return append([]string(nil), s.team...), nil
}

// HasTeamMember reports whether name is on the roster
func (s *Session) HasTeamMember(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.team {
		if strings.EqualFold(m, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func (s *Session) touch() {
	s.updatedAt = time.Now()
}

func mapNotReady() error {
	return pkgerrors.NewConflictError("the map has not been generated yet").
		WithCode("MAP_NOT_READY")
}

func stepError(current, want Step) error {
	return pkgerrors.NewConflictError("operation not allowed in the current step").
		WithCode("WRONG_STEP").
		WithDetail("step", string(current)).
		WithDetail("required", string(want))
}
