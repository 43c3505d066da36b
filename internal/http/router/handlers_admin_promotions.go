package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/motorlot/marketplace-api/internal/auditlog"
	"github.com/motorlot/marketplace-api/internal/promotions"
)

type promotionPackageListResponse struct {
	Items []promotions.Package `json:"items"`
	Total int                  `json:"total"`
}

type adminPromotionPackageCreateRequest struct {
	Name                string `json:"name" validate:"required,min=2,max=120"`
	FeatureDurationDays int    `json:"feature_duration_days" validate:"required,gt=0,lte=90"`
	PriceCents          int64  `json:"price_cents" validate:"gte=0"`
	Currency            string `json:"currency" validate:"omitempty,len=3"`
	Active              *bool  `json:"active"`
}

type adminPromotionPackageUpdateRequest struct {
	Name                *string `json:"name" validate:"omitempty,min=2,max=120"`
	FeatureDurationDays *int    `json:"feature_duration_days" validate:"omitempty,gt=0,lte=90"`
	PriceCents          *int64  `json:"price_cents" validate:"omitempty,gte=0"`
	Active              *bool   `json:"active"`
}

func (a *api) handlePromotionPackagesList(w http.ResponseWriter, _ *http.Request) {
	items := a.promotions.List(false)
	writeJSON(w, http.StatusOK, promotionPackageListResponse{
		Items: items,
		Total: len(items),
	})
}

func (a *api) handleAdminPromotionPackagesList(w http.ResponseWriter, _ *http.Request) {
	items := a.promotions.List(true)
	writeJSON(w, http.StatusOK, promotionPackageListResponse{
		Items: items,
		Total: len(items),
	})
}

func (a *api) handleAdminPromotionPackageCreate(w http.ResponseWriter, r *http.Request) {
	var req adminPromotionPackageCreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pkg, err := a.promotions.Create(promotions.CreatePackageInput{
		Name:                req.Name,
		FeatureDurationDays: req.FeatureDurationDays,
		PriceCents:          req.PriceCents,
		Currency:            req.Currency,
		Active:              req.Active,
	})
	if err != nil {
		switch {
		case errors.Is(err, promotions.ErrInvalidPackage):
			writeError(w, http.StatusBadRequest, "invalid promotion package payload")
		default:
			writeError(w, http.StatusInternalServerError, "unable to create promotion package")
		}
		return
	}

	a.recordAuditLog(r, auditlog.ActionPromotionPackageChanged, auditlog.TargetPromotionPackage, pkg.ID, nil, pkg, map[string]string{"change": "created"})
	writeJSON(w, http.StatusCreated, pkg)
}

func (a *api) handleAdminPromotionPackageUpdate(w http.ResponseWriter, r *http.Request) {
	packageID := strings.TrimSpace(chi.URLParam(r, "packageID"))
	if packageID == "" {
		writeError(w, http.StatusBadRequest, "package id is required")
		return
	}

	var req adminPromotionPackageUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	before, _ := a.promotions.Get(packageID)
	pkg, err := a.promotions.Update(packageID, promotions.UpdatePackageInput{
		Name:                req.Name,
		FeatureDurationDays: req.FeatureDurationDays,
		PriceCents:          req.PriceCents,
		Active:              req.Active,
	})
	if err != nil {
		switch {
		case errors.Is(err, promotions.ErrNoPackageChanges),
			errors.Is(err, promotions.ErrInvalidPackage):
			writeError(w, http.StatusBadRequest, "invalid promotion package payload")
		case errors.Is(err, promotions.ErrPackageNotFound):
			writeError(w, http.StatusNotFound, "promotion package not found")
		default:
			writeError(w, http.StatusInternalServerError, "unable to update promotion package")
		}
		return
	}

	a.recordAuditLog(r, auditlog.ActionPromotionPackageChanged, auditlog.TargetPromotionPackage, pkg.ID, before, pkg, map[string]string{"change": "updated"})
	writeJSON(w, http.StatusOK, pkg)
}

func (a *api) handleAdminPromotionPackageDelete(w http.ResponseWriter, r *http.Request) {
	packageID := strings.TrimSpace(chi.URLParam(r, "packageID"))
	if packageID == "" {
		writeError(w, http.StatusBadRequest, "package id is required")
		return
	}

	before, _ := a.promotions.Get(packageID)
	if err := a.promotions.Delete(packageID); err != nil {
		switch {
		case errors.Is(err, promotions.ErrInvalidPackage):
			writeError(w, http.StatusBadRequest, "package id is required")
		case errors.Is(err, promotions.ErrPackageNotFound):
			writeError(w, http.StatusNotFound, "promotion package not found")
		default:
			writeError(w, http.StatusInternalServerError, "unable to delete promotion package")
		}
		return
	}

	a.recordAuditLog(r, auditlog.ActionPromotionPackageChanged, auditlog.TargetPromotionPackage, packageID, before, nil, map[string]string{"change": "deleted"})
	w.WriteHeader(http.StatusNoContent)
}
