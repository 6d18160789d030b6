package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/go-task-manager/internal/http/errors"
	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/service"
)

func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	items, err := h.svc.ListTasks(r.Context(), u.ID, models.TaskFilter{
		ProjectID: q.Get("projectId"),
		Label:     q.Get("label"),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := make([]taskResponse, 0, len(items))
	for i := range items {
		out = append(out, taskFromModel(&items[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	t, err := h.svc.GetTask(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, taskFromModel(t))
}

func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in createTaskRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errMalformedBody())
		return
	}

	t, err := h.svc.CreateTask(r.Context(), u.ID, service.CreateTaskInput{
		Title:       in.Title,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		AssigneeID:  in.AssigneeID,
		DueDate:     in.DueDate,
		Priority:    models.Priority(in.Priority),
		Labels:      in.Labels,
		Subtasks:    subtasksToModel(in.Subtasks),
		Reminders:   remindersToModel(in.Reminders),
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, taskFromModel(t))
}

func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in updateTaskRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errMalformedBody())
		return
	}

	t, err := h.svc.UpdateTask(r.Context(), u.ID, chi.URLParam(r, "id"), in.toPatch())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, taskFromModel(t))
}

func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteTask(r.Context(), u.ID, chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	t, err := h.svc.ToggleTask(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, taskFromModel(t))
}
