package controllers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/storage/local"
)

// LocalBlobs is the part of the local blob store that serves signed URLs.
type LocalBlobs interface {
	Verify(path, expires, signature string) error
	Open(path string) (*os.File, error)
}

// BlobServe streams a local blob when its signed URL is valid and unexpired.
func BlobServe(store LocalBlobs, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := chi.URLParam(r, "*")
		query := r.URL.Query()
		if err := store.Verify(path, query.Get(local.QueryExpires), query.Get(local.QuerySignature)); err != nil {
			if errors.Is(err, local.ErrExpired) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "signed url expired"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid signature"))
			return
		}

		f, err := store.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "blob not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open blob"))
			return
		}
		defer f.Close()

		mtype, err := mimetype.DetectReader(f)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sniff blob"))
			return
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rewind blob"))
			return
		}
		if info, err := f.Stat(); err == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
		}

		w.Header().Set("Content-Type", mtype.String())
		w.Header().Set("Cache-Control", "private, max-age=300")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, f); err != nil && logg != nil {
			logg.Error(r.Context(), "stream blob", err)
		}
	}
}
