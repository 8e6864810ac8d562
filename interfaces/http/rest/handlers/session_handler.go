package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindmap-backend/application/services"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/interview"
	"mindmap-backend/domain/session"
	pkgerrors "mindmap-backend/pkg/errors"
	"mindmap-backend/pkg/utils"
)

// maxBodyBytes leaves room for a full-length source plus JSON overhead
const maxBodyBytes = 1 << 20

// SessionHandler serves the planning session API
type SessionHandler struct {
	service *services.SessionService
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service *services.SessionService, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		errors:  errorHandler,
		logger:  logger,
	}
}

// StartSessionRequest is the body of POST /sessions
type StartSessionRequest struct {
	Type     string `json:"type,omitempty" validate:"omitempty,oneof=text file url mixed"`
	Content  string `json:"content" validate:"max=50000"`
	FileInfo string `json:"fileInfo,omitempty" validate:"omitempty,max=255"`
}

// AnswerRequest is the body of PUT /sessions/{id}/answers/{index}
type AnswerRequest struct {
	Options []string `json:"options" validate:"omitempty,max=20,dive,max=500"`
	Other   []string `json:"other,omitempty" validate:"omitempty,max=20,dive,max=500"`
}

// GenerateRequest is the body of POST /sessions/{id}/generate
type GenerateRequest struct {
	Skip bool `json:"skip"`
}

// RenameRequest is the body of PATCH /sessions/{id}/map
type RenameRequest struct {
	Title string `json:"title" validate:"notblank,max=200"`
}

// NodeRequest carries node fields; absent fields are left untouched
type NodeRequest struct {
	Label       *string   `json:"label,omitempty" validate:"omitempty,notblank,max=200"`
	Description *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Type        *string   `json:"type,omitempty" validate:"omitempty,nodetype"`
	Color       *string   `json:"color,omitempty" validate:"omitempty,max=32"`
	Assignee    *string   `json:"assignee,omitempty" validate:"omitempty,max=100"`
	Attachments *[]string `json:"attachments,omitempty" validate:"omitempty,max=50,dive,max=255"`
	Links       *[]string `json:"links,omitempty" validate:"omitempty,max=50,dive,max=2048"`
	Collapsed   *bool     `json:"isCollapsed,omitempty"`
}

// TeamMemberRequest is the body of POST /sessions/{id}/team
type TeamMemberRequest struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

// QuestionsResponse pairs the questions with the current answers
type QuestionsResponse struct {
	Questions []interview.Question `json:"questions"`
	Answers   interview.Answers    `json:"answers"`
}

// AddChildResponse reports the created node with the updated view
type AddChildResponse struct {
	Node entities.Node `json:"node"`
	View services.View `json:"view"`
}

func (r NodeRequest) fields() entities.NodeFields {
	f := entities.NodeFields{
		Label:       r.Label,
		Description: r.Description,
		Color:       r.Color,
		Assignee:    r.Assignee,
		Attachments: r.Attachments,
		Links:       r.Links,
		Collapsed:   r.Collapsed,
	}
	if r.Type != nil {
		t := valueobjects.ParseNodeType(*r.Type)
		f.Type = &t
	}
	return f
}

// StartSession handles POST /sessions
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	st, err := h.service.Start(r.Context(), interview.ProjectSource{
		Type:     interview.SourceType(req.Type),
		Content:  req.Content,
		FileInfo: req.FileInfo,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, st)
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, st)
}

// DeleteSession handles DELETE /sessions/{sessionID}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), sessionID(r)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetQuestions handles GET /sessions/{sessionID}/questions
func (h *SessionHandler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	qs, answers, err := h.service.Questions(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, QuestionsResponse{Questions: qs, Answers: answers})
}

// Answer handles PUT /sessions/{sessionID}/answers/{index}
func (h *SessionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.questionIndex(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	answers, err := h.service.Answer(r.Context(), sessionID(r), idx, req.Options, req.Other)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"answers": answers})
}

// ToggleAll handles POST /sessions/{sessionID}/answers/{index}/toggle-all
func (h *SessionHandler) ToggleAll(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.questionIndex(w, r)
	if !ok {
		return
	}
	answers, err := h.service.ToggleAll(r.Context(), sessionID(r), idx)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"answers": answers})
}

// Reformulate handles POST /sessions/{sessionID}/reformulate
func (h *SessionHandler) Reformulate(w http.ResponseWriter, r *http.Request) {
	qs, err := h.service.Reformulate(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	_, answers, err := h.service.Questions(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, QuestionsResponse{Questions: qs, Answers: answers})
}

// Generate handles POST /sessions/{sessionID}/generate. The body is optional.
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	v, err := h.service.Confirm(r.Context(), sessionID(r), req.Skip)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// GetMap handles GET /sessions/{sessionID}/map
func (h *SessionHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.View(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// RenameMap handles PATCH /sessions/{sessionID}/map
func (h *SessionHandler) RenameMap(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	v, err := h.service.Rename(r.Context(), sessionID(r), req.Title)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// AddChild handles POST /sessions/{sessionID}/map/nodes/{nodeID}/children.
// The body is optional; an empty one creates a default node.
func (h *SessionHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	node, v, err := h.service.AddChild(r.Context(), sessionID(r), nodeID(r), req.fields())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, AddChildResponse{Node: node, View: v})
}

// UpdateNode handles PATCH /sessions/{sessionID}/map/nodes/{nodeID}
func (h *SessionHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req NodeRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	v, err := h.service.UpdateNode(r.Context(), sessionID(r), nodeID(r), req.fields())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// DeleteNode handles DELETE /sessions/{sessionID}/map/nodes/{nodeID}
func (h *SessionHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.DeleteNode(r.Context(), sessionID(r), nodeID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// ExpandNode handles POST /sessions/{sessionID}/map/nodes/{nodeID}/expand
func (h *SessionHandler) ExpandNode(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Expand(r.Context(), sessionID(r), nodeID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// Undo handles POST /sessions/{sessionID}/undo
func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Undo(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// Redo handles POST /sessions/{sessionID}/redo
func (h *SessionHandler) Redo(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Redo(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, v)
}

// GetHistory handles GET /sessions/{sessionID}/history
func (h *SessionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	tl, err := h.service.Timeline(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, tl)
}

// GetTeam handles GET /sessions/{sessionID}/team
func (h *SessionHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"team": st.Team})
}

// AddTeamMember handles POST /sessions/{sessionID}/team
func (h *SessionHandler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	var req TeamMemberRequest
	if !h.decode(w, r, &req, true) {
		return
	}
	team, err := h.service.AddTeamMember(r.Context(), sessionID(r), req.Name)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"team": team})
}

// decode reads and validates a JSON body into dst. With required unset an
// empty body leaves dst at its zero value.
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, required bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && !required {
			return true
		}
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body").WithCause(err))
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		h.errors.Handle(w, r, err)
		return false
	}
	return true
}

func (h *SessionHandler) questionIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("question index must be a number").
			WithDetail("index", chi.URLParam(r, "index")))
		return 0, false
	}
	return idx, true
}

func (h *SessionHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func sessionID(r *http.Request) session.ID {
	return session.ID(chi.URLParam(r, "sessionID"))
}

func nodeID(r *http.Request) valueobjects.NodeID {
	return valueobjects.NodeID(chi.URLParam(r, "nodeID"))
}
