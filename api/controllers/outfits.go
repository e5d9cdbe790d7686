package controllers

import (
	"net/http"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/api/validators"
	"github.com/angelmondragon/wardrobe-backend/internal/outfits"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

// OutfitDraftCreate builds an outfit draft from the selected wardrobe items.
func OutfitDraftCreate(svc outfits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body outfits.DraftRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := svc.CreateDraft(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, draft)
	}
}
