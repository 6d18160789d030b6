package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/go-task-manager/internal/http/errors"
	"github.com/pribylovaa/go-task-manager/internal/service"
)

func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	items, err := h.svc.ListProjects(r.Context(), u.ID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := make([]projectResponse, 0, len(items))
	for i := range items {
		out = append(out, projectFromModel(&items[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.svc.GetProject(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, projectFromModel(p))
}

func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in projectRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errMalformedBody())
		return
	}

	name := ""
	if in.Name != nil {
		name = *in.Name
	}

	p, err := h.svc.CreateProject(r.Context(), u.ID, name)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, projectFromModel(p))
}

func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in projectRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errMalformedBody())
		return
	}

	p, err := h.svc.UpdateProject(r.Context(), u.ID, chi.URLParam(r, "id"), in.Name)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, projectFromModel(p))
}

func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteProject(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in memberRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errMalformedBody())
		return
	}

	p, err := h.svc.AddMember(r.Context(), u.ID, chi.URLParam(r, "id"), in.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, projectFromModel(p))
}

func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.svc.RemoveMember(r.Context(), u.ID, chi.URLParam(r, "id"), chi.URLParam(r, "uid"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, projectFromModel(p))
}

func (h *Handlers) ListActivity(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apierrors.WriteError(w, r, &service.ValidationError{Fields: []service.FieldError{
				{Field: "limit", Message: "must be a non-negative integer"},
			}})
			return
		}
		limit = n
	}

	items, err := h.svc.ListActivity(r.Context(), u.ID, chi.URLParam(r, "id"), limit)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := make([]activityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, activityFromModel(a))
	}
	writeJSON(w, http.StatusOK, out)
}
