package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
	"github.com/motorlot/marketplace-api/internal/listings"
)

type listingCreateRequest struct {
	Title      string `json:"title" validate:"required,min=3,max=140"`
	Make       string `json:"make" validate:"required,max=60"`
	Model      string `json:"model" validate:"required,max=60"`
	Year       int    `json:"year" validate:"required,gte=1900"`
	PriceCents int64  `json:"price_cents" validate:"required,gt=0"`
	Currency   string `json:"currency" validate:"required,len=3"`
	MileageKM  int    `json:"mileage_km" validate:"gte=0"`
}

type listingUpdateRequest struct {
	Title      *string `json:"title" validate:"omitempty,min=3,max=140"`
	Make       *string `json:"make" validate:"omitempty,max=60"`
	Model      *string `json:"model" validate:"omitempty,max=60"`
	Year       *int    `json:"year" validate:"omitempty,gte=1900"`
	PriceCents *int64  `json:"price_cents" validate:"omitempty,gt=0"`
	Currency   *string `json:"currency" validate:"omitempty,len=3"`
	MileageKM  *int    `json:"mileage_km" validate:"omitempty,gte=0"`
}

type listingActionRequest struct {
	Action    string `json:"action" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
	Featured  *bool  `json:"featured"`
	PackageID string `json:"package_id" validate:"max=64"`
}

type listingResponse struct {
	lifecycle.Listing
	FeaturedDaysRemaining int                `json:"featured_days_remaining"`
	AllowedActions        []lifecycle.Action `json:"allowed_actions,omitempty"`
}

type listingListResponse struct {
	Items []listingResponse `json:"items"`
	Total int               `json:"total"`
}

type allowedActionsResponse struct {
	ListingID string             `json:"listing_id"`
	Status    lifecycle.Status   `json:"status"`
	Actions   []lifecycle.Action `json:"actions"`
}

func (a *api) toListingResponse(actor lifecycle.Actor, listing lifecycle.Listing) listingResponse {
	response := listingResponse{
		Listing:               listing,
		FeaturedDaysRemaining: lifecycle.FeaturedDaysRemaining(listing, a.now()),
	}
	if actor.UserID != "" {
		response.AllowedActions = lifecycle.AllowedActions(actor, listing)
	}
	return response
}

func (a *api) toListingList(actor lifecycle.Actor, items []lifecycle.Listing) listingListResponse {
	response := listingListResponse{Items: make([]listingResponse, 0, len(items)), Total: len(items)}
	for _, listing := range items {
		response.Items = append(response.Items, a.toListingResponse(actor, listing))
	}
	return response
}

func (a *api) handleListingsBrowse(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	items, err := a.listings.ListActive(r.Context(), limit, offset)
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toListingList(lifecycle.Actor{}, items))
}

func (a *api) handleListingGet(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromRequest(r)

	listing, err := a.listings.Get(r.Context(), actor, chi.URLParam(r, "listingID"))
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toListingResponse(actor, listing))
}

func (a *api) handleListingCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req listingCreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	listing, err := a.listings.Create(r.Context(), actor, listings.CreateInput{
		Title:      req.Title,
		Make:       req.Make,
		Model:      req.Model,
		Year:       req.Year,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
		MileageKM:  req.MileageKM,
	})
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.toListingResponse(actor, listing))
}

func (a *api) handleListingUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req listingUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	listing, err := a.listings.Update(r.Context(), actor, chi.URLParam(r, "listingID"), listings.UpdateInput{
		Title:      req.Title,
		Make:       req.Make,
		Model:      req.Model,
		Year:       req.Year,
		PriceCents: req.PriceCents,
		Currency:   req.Currency,
		MileageKM:  req.MileageKM,
	})
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toListingResponse(actor, listing))
}

func (a *api) handleListingAction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req listingActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	listing, err := a.listings.ApplyAction(r.Context(), actor, chi.URLParam(r, "listingID"), listings.ActionInput{
		Action:    req.Action,
		Reason:    req.Reason,
		Featured:  req.Featured,
		PackageID: req.PackageID,
	})
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toListingResponse(actor, listing))
}

func (a *api) handleListingDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	_, err := a.listings.ApplyAction(r.Context(), actor, chi.URLParam(r, "listingID"), listings.ActionInput{
		Action: string(lifecycle.ActionDelete),
	})
	if err != nil {
		writeListingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleListingAllowedActions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	listing, err := a.listings.Get(r.Context(), actor, chi.URLParam(r, "listingID"))
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allowedActionsResponse{
		ListingID: listing.ID,
		Status:    listing.Status,
		Actions:   lifecycle.AllowedActions(actor, listing),
	})
}

func (a *api) handleMyListings(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	items, err := a.listings.ListMine(r.Context(), actor)
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toListingList(actor, items))
}

func (a *api) handleAdminListingQueue(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	status := lifecycle.StatusPending
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, valid := lifecycle.ParseStatus(raw)
		if !valid {
			writeError(w, http.StatusBadRequest, "unknown listing status")
			return
		}
		status = parsed
	}

	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}

	items, err := a.listings.ListByStatus(r.Context(), actor, status, limit, offset)
	if err != nil {
		writeListingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toListingList(actor, items))
}

// writeListingError maps engine denials to their reason code so clients can
// branch on the same values the engine reports.
func writeListingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusForbidden, string(lifecycle.ReasonInvalidTransition))
	case errors.Is(err, lifecycle.ErrUnauthorized):
		writeError(w, http.StatusForbidden, string(lifecycle.ReasonUnauthorized))
	case errors.Is(err, lifecycle.ErrMissingReason):
		writeError(w, http.StatusUnprocessableEntity, string(lifecycle.ReasonMissingReason))
	case errors.Is(err, lifecycle.ErrInvalidPayload):
		writeError(w, http.StatusUnprocessableEntity, string(lifecycle.ReasonInvalidPayload))
	case errors.Is(err, listings.ErrConflict):
		writeError(w, http.StatusConflict, "Conflict")
	case errors.Is(err, listings.ErrActionInFlight):
		writeError(w, http.StatusConflict, "ActionInFlight")
	case errors.Is(err, listings.ErrNotFound):
		writeError(w, http.StatusNotFound, "listing not found")
	case errors.Is(err, listings.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, listings.ErrNotEditable):
		writeError(w, http.StatusConflict, "listing can only be edited as a draft")
	case errors.Is(err, listings.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid listing details")
	default:
		writeError(w, http.StatusInternalServerError, "unable to process listing request")
	}
}
