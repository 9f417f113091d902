package httpapi

import (
	"net/http"
	"strings"

	"chepochem.org/internal/review"
)

type createReviewRequest struct {
	ReviewedID string `json:"reviewed_id"`
	ListingID  string `json:"listing_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

type updateReviewRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

func (a *API) handleReviewsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createReview(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleReviewResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/reviews/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodPatch:
		a.updateReview(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPatch)
	}
}

// handleUserResource routes /v1/users/{id}/reviews and
// /v1/users/{id}/reputation.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	id, tail, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	switch tail {
	case "reviews":
		a.listReviews(w, r, id)
	case "reputation":
		a.getReputation(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rv, err := a.reviews.Create(r.Context(), actorFrom(r), review.CreateInput{
		ReviewedID: req.ReviewedID,
		ListingID:  req.ListingID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (a *API) updateReview(w http.ResponseWriter, r *http.Request, id string) {
	var req updateReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rv, err := a.reviews.UpdateOwn(r.Context(), actorFrom(r), id, review.UpdateInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (a *API) listReviews(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := a.reviews.ListFor(r.Context(), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getReputation(w http.ResponseWriter, r *http.Request, userID string) {
	rep, err := a.reputation.Get(r.Context(), userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
