package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aldercy/wyrd/internal/apperr"
	"github.com/aldercy/wyrd/internal/cascade"
	"github.com/aldercy/wyrd/internal/graphservice"
	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/temporal"
)

const maxBodyBytes = 32 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *graphservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *graphservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrCycleRejected):
		writeJSON(w, http.StatusConflict, errorBody("operation would create a hierarchy cycle"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	default:
		slog.Error(context, slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if v, ok := dst.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

func deleteProfile(r *http.Request) (cascade.Profile, bool) {
	raw := r.URL.Query().Get("profile")
	if raw == "" {
		return cascade.StructuralOrphan, true
	}
	p := cascade.Profile(raw)
	return p, p.Valid()
}

// CreateObject handles POST /objects.
func (h *Handler) CreateObject(w http.ResponseWriter, r *http.Request) {
	var req CreateObjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Create(r.Context(), req.Object)
	if err != nil {
		writeServiceError(w, err, "create object failed")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetObject handles GET /objects/{id}.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	obj, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get object failed")
		return
	}
	cs, _ := h.svc.Checksum(r.Context(), id)
	w.Header().Set("ETag", `"`+cs+`"`)
	writeJSON(w, http.StatusOK, obj)
}

// UpdateObject handles PATCH /objects/{id} with optimistic concurrency via
// the If-Match header.
func (h *Handler) UpdateObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch UpdateObjectRequest
	if !decodeBody(w, r, &patch) {
		return
	}
	ifMatch := trimETag(r.Header.Get("If-Match"))
	obj, err := h.svc.Update(r.Context(), id, patch, ifMatch)
	if err != nil {
		writeServiceError(w, err, "update object failed")
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// DeleteObject handles DELETE /objects/{id}?profile=.
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, ok := deleteProfile(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown deletion profile"))
		return
	}
	removed, err := h.svc.Delete(r.Context(), id, profile)
	if err != nil {
		writeServiceError(w, err, "delete object failed")
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Removed: removed, Count: len(removed)})
}

// PreviewCascade handles GET /objects/{id}/cascade?profile=, the dry run
// backing confirmation dialogs.
func (h *Handler) PreviewCascade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	profile, ok := deleteProfile(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown deletion profile"))
		return
	}
	removed, err := h.svc.PreviewDelete(r.Context(), id, profile)
	if err != nil {
		writeServiceError(w, err, "preview cascade failed")
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Removed: removed, Count: len(removed)})
}

// Reparent handles POST /objects/{id}/reparent.
func (h *Handler) Reparent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ReparentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	link, err := h.svc.Reparent(r.Context(), id, req.NewParentID, req.OldParentID, req.AsReference)
	if err != nil {
		writeServiceError(w, err, "reparent failed")
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// Reify handles POST /links/{id}/reify.
func (h *Handler) Reify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ReifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	obj, err := h.svc.Reify(r.Context(), id, req.Content)
	if err != nil {
		writeServiceError(w, err, "reify failed")
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// CheckLink handles POST /links/check. Always 200: the verdict is advisory.
func (h *Handler) CheckLink(w http.ResponseWriter, r *http.Request) {
	var req CheckLinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	analysis := h.svc.AnalyzeLink(r.Context(), req.SourceID, req.TargetID, req.Verb, req.LinkKind)
	writeJSON(w, http.StatusOK, analysis)
}

// Graph handles GET /graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	objs := h.svc.Graph(r.Context())
	writeJSON(w, http.StatusOK, GraphResponse{Objects: objs, Total: len(objs)})
}

// ResolvedGraph handles GET /graph/resolved?at=RFC3339.
func (h *Handler) ResolvedGraph(w http.ResponseWriter, r *http.Request) {
	at := temporal.Latest()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid 'at' instant, want RFC3339"))
			return
		}
		at = parsed
	}
	objs, annotations := h.svc.ResolveAt(r.Context(), at)
	resp := ResolvedResponse{At: at, Objects: objs}
	if len(annotations) > 0 {
		resp.Annotations = annotations
	}
	writeJSON(w, http.StatusOK, resp)
}

// Assemble handles POST /context/assemble.
func (h *Handler) Assemble(w http.ResponseWriter, r *http.Request) {
	var req AssembleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res := h.svc.AssembleContext(r.Context(), req.Mentions, req.Budget)
	writeJSON(w, http.StatusOK, res)
}

// Compose handles POST /context/compose: assemble then generate.
func (h *Handler) Compose(w http.ResponseWriter, r *http.Request) {
	var req ComposeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text, res, err := h.svc.Compose(r.Context(), req.Mentions, req.Budget, req.SystemInstruction)
	if err != nil {
		slog.Error("compose failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("generation failed"))
		return
	}
	writeJSON(w, http.StatusOK, ComposeResponse{Text: text, Assembly: res})
}

// Export handles GET /export: the whole registry as one document.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot(r.Context()))
}

// Import handles POST /import: replace the registry with an uploaded
// snapshot document.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var snapshot map[string]models.Object
	if !decodeBody(w, r, &snapshot) {
		return
	}
	if err := h.svc.Replace(r.Context(), snapshot); err != nil {
		writeServiceError(w, err, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": len(snapshot)})
}

// Ingest handles POST /ingest: an atomic batch of objects.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var batch []models.Object
	if !decodeBody(w, r, &batch) {
		return
	}
	if err := h.svc.Ingest(r.Context(), batch); err != nil {
		writeServiceError(w, err, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"ingested": len(batch)})
}

// trimETag strips surrounding quotes (standard ETag format).
func trimETag(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}
