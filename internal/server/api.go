package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/formatter"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	"github.com/desertthunder/esifleet/internal/tasks"
)

const maxBodyBytes = 1 << 20

// Engine is the subset of [tasks.FleetEngine] served over HTTP.
type Engine interface {
	LeadershipRole(ctx context.Context, characterID int64) (models.LeadershipRole, error)
	FullFleetInfo(ctx context.Context, characterID int64) (*models.FullFleetInfo, error)
	Capture(ctx context.Context, characterID int64, name string) (*tasks.CaptureResult, error)
	ResolveTemplate(ref string) (*models.FleetTemplate, error)
	Reconstruct(ctx context.Context, characterID int64, templateRef string, progress chan<- tasks.ProgressUpdate) (*models.FullFleetInfo, error)
	UpdateSettings(ctx context.Context, characterID int64, update models.FleetSettingsUpdate) error
	DeleteWing(ctx context.Context, characterID, wingID int64) error
	DeleteSquad(ctx context.Context, characterID, squadID int64) error
	MoveMember(ctx context.Context, characterID, memberID int64, move models.MemberMove) error
}

// Templates lists stored templates.
type Templates interface {
	List(criteria map[string]any) ([]*models.FleetTemplate, error)
}

// FleetHandler is the session-protected JSON API over the fleet engine.
//
// Routes under /api/characters/{characterId} act as that character, which must be linked to the
// session's Discord user.
type FleetHandler struct {
	engine     Engine
	templates  Templates
	users      UserStore
	characters CharacterStore
	logger     *log.Logger
	handler    http.Handler
}

// NewFleetHandler wires the API routes behind sessions.Require. A nil logger discards output.
func NewFleetHandler(engine Engine, templates Templates, users UserStore, characters CharacterStore, sessions *Sessions, logger *log.Logger) *FleetHandler {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	h := &FleetHandler{
		engine:     engine,
		templates:  templates,
		users:      users,
		characters: characters,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/me", h.me)
	mux.HandleFunc("GET /api/templates", h.listTemplates)
	mux.HandleFunc("GET /api/templates/{template}", h.getTemplate)
	mux.HandleFunc("GET /api/templates/{template}/export", h.exportTemplate)
	mux.HandleFunc("POST /api/drafts/check", h.checkDraft)
	mux.HandleFunc("GET /api/characters/{characterId}/role", h.role)
	mux.HandleFunc("GET /api/characters/{characterId}/fleet", h.fleet)
	mux.HandleFunc("POST /api/characters/{characterId}/capture", h.capture)
	mux.HandleFunc("POST /api/characters/{characterId}/reconstruct", h.reconstruct)
	mux.HandleFunc("PUT /api/characters/{characterId}/fleet/settings", h.updateSettings)
	mux.HandleFunc("DELETE /api/characters/{characterId}/fleet/wings/{wingId}", h.deleteWing)
	mux.HandleFunc("DELETE /api/characters/{characterId}/fleet/squads/{squadId}", h.deleteSquad)
	mux.HandleFunc("PUT /api/characters/{characterId}/fleet/members/{memberId}", h.moveMember)

	h.handler = sessions.Require(mux)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *FleetHandler) Routes() []string {
	return []string{"/api/"}
}

func (h *FleetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// StatusFor maps engine errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrReconstructionIncomplete):
		return http.StatusMultiStatus
	case errors.Is(err, shared.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, shared.ErrRemoteTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrRemoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidTemplate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *FleetHandler) me(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFrom(r.Context())
	user, err := h.users.GetByDiscordID(session.DiscordID)
	if err != nil {
		h.fail(w, err)
		return
	}

	chars, err := h.characters.List(map[string]any{"user_id": user.ID()})
	if err != nil {
		h.fail(w, err)
		return
	}

	type character struct {
		CharacterID int64  `json:"character_id"`
		Name        string `json:"name"`
	}
	out := struct {
		Session
		Characters []character `json:"characters"`
	}{Session: session, Characters: []character{}}
	for _, c := range chars {
		out.Characters = append(out.Characters, character{CharacterID: c.CharacterID(), Name: c.Name()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *FleetHandler) listTemplates(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{}
	if owner := r.URL.Query().Get("owner"); owner != "" {
		id, err := strconv.ParseInt(owner, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "owner must be a character id")
			return
		}
		criteria["owner_id"] = id
	}

	list, err := h.templates.List(criteria)
	if err != nil {
		h.fail(w, err)
		return
	}

	views := make([]models.TemplateView, 0, len(list))
	for _, t := range list {
		views = append(views, t.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *FleetHandler) getTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.engine.ResolveTemplate(r.PathValue("template"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl.View())
}

func (h *FleetHandler) exportTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.engine.ResolveTemplate(r.PathValue("template"))
	if err != nil {
		h.fail(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatter.FormatJSON
	}
	data, err := formatter.ExportTemplate(tpl, format)
	if err != nil {
		h.fail(w, err)
		return
	}

	contentTypes := map[string]string{
		formatter.FormatJSON:     "application/json",
		formatter.FormatYAML:     "application/yaml",
		formatter.FormatMarkdown: "text/markdown; charset=utf-8",
		formatter.FormatCSV:      "text/csv; charset=utf-8",
	}
	ct, ok := contentTypes[formatter.FormatFromPath("x."+format)]
	if !ok {
		ct = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formatter.Slug(tpl.Name())+"."+format))
	_, _ = w.Write(data)
}

func (h *FleetHandler) role(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}

	role, err := h.engine.LeadershipRole(r.Context(), characterID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *FleetHandler) fleet(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}

	full, err := h.engine.FullFleetInfo(r.Context(), characterID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if full == nil {
		writeError(w, http.StatusNotFound, "character is not in a fleet")
		return
	}
	writeJSON(w, http.StatusOK, full)
}

type captureRequest struct {
	Name string `json:"name"`
}

type captureResponse struct {
	Name     string               `json:"name"`
	Template *models.TemplateView `json:"template,omitempty"`
	Snapshot models.FleetSnapshot `json:"snapshot"`
	Error    string               `json:"error,omitempty"`
}

// capture answers 201 when the template was saved. When only the save failed, the snapshot is
// still returned with the save error's status.
func (h *FleetHandler) capture(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}

	var req captureRequest
	if !decodeBody(w, r, &req, true) {
		return
	}

	res, err := h.engine.Capture(r.Context(), characterID, req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}

	out := captureResponse{Name: res.Name, Snapshot: res.Snapshot}
	if res.SaveErr != nil {
		out.Error = res.SaveErr.Error()
		writeJSON(w, StatusFor(res.SaveErr), out)
		return
	}

	view := res.Template.View()
	out.Template = &view
	writeJSON(w, http.StatusCreated, out)
}

type draftResponse struct {
	Name   string               `json:"name,omitempty"`
	Body   models.FleetSnapshot `json:"body"`
	Wings  int                  `json:"wings"`
	Squads int                  `json:"squads"`
}

// checkDraft validates a JSON or YAML template file (see [formatter.ParseDraft]) and echoes its
// structure. Nothing is stored: templates only enter the store through a capture.
func (h *FleetHandler) checkDraft(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	format := formatter.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = formatter.FormatYAML
	}

	name, body, err := formatter.ParseDraft(data, format)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{Name: name, Body: body, Wings: len(body.Wings), Squads: len(body.Squads)})
}

type reconstructRequest struct {
	Template string `json:"template"`
}

type reconstructFailure struct {
	Error      string                 `json:"error"`
	Step       string                 `json:"step"`
	State      string                 `json:"state"`
	WingIndex  int                    `json:"wing_index"`
	SquadIndex int                    `json:"squad_index"`
	Mapping    tasks.LiveFleetMapping `json:"mapping"`
}

func (h *FleetHandler) reconstruct(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}

	var req reconstructRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Template) == "" {
		writeError(w, http.StatusBadRequest, "template is required")
		return
	}
	ref := strings.TrimSpace(req.Template)

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.streamReconstruct(w, r, characterID, ref)
		return
	}

	full, err := h.engine.Reconstruct(r.Context(), characterID, ref, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, full)
}

// streamReconstruct reports progress as server-sent events and ends with a "result" or "error" event.
func (h *FleetHandler) streamReconstruct(w http.ResponseWriter, r *http.Request, characterID int64, templateRef string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusNotAcceptable, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	type outcome struct {
		full *models.FullFleetInfo
		err  error
	}
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan outcome, 1)

	go func() {
		full, err := h.engine.Reconstruct(r.Context(), characterID, templateRef, progress)
		done <- outcome{full, err}
	}()

	send := func(event string, v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}
	sendUpdate := func(u tasks.ProgressUpdate) {
		send("progress", map[string]any{"phase": u.Phase.String(), "step": u.Step, "total": u.Total, "message": u.Message})
	}

	for {
		select {
		case u := <-progress:
			sendUpdate(u)
		case o := <-done:
			for len(progress) > 0 {
				sendUpdate(<-progress)
			}
			if o.err != nil {
				status, body := errorBody(o.err)
				send("error", map[string]any{"status": status, "body": body})
				return
			}
			send("result", o.full)
			return
		}
	}
}

func (h *FleetHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}

	var update models.FleetSettingsUpdate
	if !decodeBody(w, r, &update, false) {
		return
	}
	if update.IsFreeMove == nil && update.MOTD == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := h.engine.UpdateSettings(r.Context(), characterID, update); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) deleteWing(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}
	wingID, ok := pathID(w, r, "wingId")
	if !ok {
		return
	}

	if err := h.engine.DeleteWing(r.Context(), characterID, wingID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) deleteSquad(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}
	squadID, ok := pathID(w, r, "squadId")
	if !ok {
		return
	}

	if err := h.engine.DeleteSquad(r.Context(), characterID, squadID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) moveMember(w http.ResponseWriter, r *http.Request) {
	characterID, ok := h.character(w, r)
	if !ok {
		return
	}
	memberID, ok := pathID(w, r, "memberId")
	if !ok {
		return
	}

	var move models.MemberMove
	if !decodeBody(w, r, &move, false) {
		return
	}
	if models.ParseRole(string(move.Role)) == models.RoleNone {
		writeError(w, http.StatusBadRequest, "role must be a fleet role")
		return
	}

	if err := h.engine.MoveMember(r.Context(), characterID, memberID, move); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// character returns the path's character id after checking the session user owns it.
func (h *FleetHandler) character(w http.ResponseWriter, r *http.Request) (int64, bool) {
	characterID, ok := pathID(w, r, "characterId")
	if !ok {
		return 0, false
	}

	session, _ := SessionFrom(r.Context())
	user, err := h.users.GetByDiscordID(session.DiscordID)
	if err != nil {
		h.fail(w, err)
		return 0, false
	}

	c, err := h.characters.GetByCharacterID(characterID)
	if err != nil {
		h.fail(w, err)
		return 0, false
	}
	if c.UserID() != user.ID() {
		writeError(w, http.StatusForbidden, "character is not linked to your account")
		return 0, false
	}
	return characterID, true
}

func (h *FleetHandler) fail(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

// errorBody returns the status and JSON body for err. A [tasks.ReconstructionError] carries its mapping.
func errorBody(err error) (int, any) {
	status := StatusFor(err)

	var rerr *tasks.ReconstructionError
	if errors.As(err, &rerr) {
		return status, reconstructFailure{
			Error:      err.Error(),
			Step:       rerr.Step,
			State:      rerr.State.String(),
			WingIndex:  rerr.WingIndex,
			SquadIndex: rerr.SquadIndex,
			Mapping:    rerr.Mapping,
		}
	}
	return status, map[string]string{"error": err.Error()}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", name))
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON body into v. An empty body is accepted when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
