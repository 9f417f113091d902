package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"chepochem.org/internal/auth"
	"chepochem.org/internal/listing"
	"chepochem.org/internal/notify"
	"chepochem.org/internal/rbac"
	"chepochem.org/internal/reputation"
	"chepochem.org/internal/review"
)

type createListingRequest struct {
	CategoryID   string `json:"category_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	Condition    string `json:"condition"`
	Location     string `json:"location"`
	IsNegotiable *bool  `json:"is_negotiable"`
	IsUrgent     bool   `json:"is_urgent"`
	Draft        bool   `json:"draft"`
}

type updateListingRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Price        *int64  `json:"price"`
	Location     *string `json:"location"`
	IsNegotiable *bool   `json:"is_negotiable"`
	IsUrgent     *bool   `json:"is_urgent"`
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleListingsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createListing(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleListingResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/listings/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, tail, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "listing not found")
		return
	}

	switch tail {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getListing(w, r, id)
		case http.MethodPatch:
			a.updateListing(w, r, id)
		case http.MethodDelete:
			a.deleteListing(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "approve", "reject", "pause", "unpause":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.moderateListing(w, r, id, listing.ModerationAction(tail))
	case "sold":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.markListingSold(w, r, id)
	case "moderation":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listModerationLog(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	in := listing.CreateInput{
		CategoryID:   req.CategoryID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Currency:     req.Currency,
		Condition:    listing.Condition(req.Condition),
		Location:     req.Location,
		IsNegotiable: req.IsNegotiable,
		IsUrgent:     req.IsUrgent,
	}

	actor := actorFrom(r)
	var (
		l   listing.Listing
		err error
	)
	if req.Draft {
		l, err = a.listings.SaveDraft(r.Context(), actor, in)
	} else {
		l, err = a.listings.Create(r.Context(), actor, in)
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/listings/"+l.ID)
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) getListing(w http.ResponseWriter, r *http.Request, id string) {
	l, err := a.listings.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) updateListing(w http.ResponseWriter, r *http.Request, id string) {
	var req updateListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	l, err := a.listings.UpdateOwn(r.Context(), actorFrom(r), id, listing.UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Location:     req.Location,
		IsNegotiable: req.IsNegotiable,
		IsUrgent:     req.IsUrgent,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) deleteListing(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.listings.DeleteOwn(r.Context(), actorFrom(r), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) moderateListing(w http.ResponseWriter, r *http.Request, id string, action listing.ModerationAction) {
	var req moderationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	actor := actorFrom(r)
	var (
		rec listing.ModerationRecord
		err error
	)
	switch action {
	case listing.ActionApprove:
		rec, err = a.workflow.Approve(r.Context(), actor, id)
	case listing.ActionReject:
		rec, err = a.workflow.Reject(r.Context(), actor, id, req.Reason)
	case listing.ActionPause:
		rec, err = a.workflow.Pause(r.Context(), actor, id, req.Reason)
	case listing.ActionUnpause:
		rec, err = a.workflow.Unpause(r.Context(), actor, id)
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) markListingSold(w http.ResponseWriter, r *http.Request, id string) {
	if err := a.listings.MarkSold(r.Context(), actorFrom(r), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": string(listing.StatusSold)})
}

func (a *API) listModerationLog(w http.ResponseWriter, r *http.Request, id string) {
	log, err := a.workflow.Log(r.Context(), actorFrom(r), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": log})
}

// --- helpers ---

func actorFrom(r *http.Request) rbac.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, rbac.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, rbac.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, listing.ErrNotFound),
		errors.Is(err, review.ErrNotFound),
		errors.Is(err, reputation.ErrNotFound),
		errors.Is(err, notify.ErrNotFound),
		errors.Is(err, rbac.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, listing.ErrInvalidInput),
		errors.Is(err, review.ErrInvalidInput),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, review.ErrSelfReview):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, listing.ErrInvalidTransition),
		errors.Is(err, listing.ErrStatusConflict),
		errors.Is(err, review.ErrDuplicate):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := requestID(r); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
