package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/go-task-manager/internal/http/errors"
)

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	me, err := h.svc.Me(r.Context(), u.ID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userFromModel(me))
}

func (h *Handlers) AvatarPresign(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in presignRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errMalformedBody())
		return
	}

	info, err := h.svc.AvatarUploadURL(r.Context(), u.ID, in.ContentType, in.ContentLength)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, presignResponse{
		UploadURL:       info.UploadURL,
		AvatarKey:       info.AvatarKey,
		ExpiresIn:       int64(info.Expires.Seconds()),
		RequiredHeaders: info.RequiredHeader,
	})
}

func (h *Handlers) AvatarConfirm(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in confirmAvatarRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, errMalformedBody())
		return
	}

	updated, err := h.svc.ConfirmAvatar(r.Context(), u.ID, in.AvatarKey)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userFromModel(updated))
}
