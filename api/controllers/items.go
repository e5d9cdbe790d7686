package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/api/responses"
	"github.com/angelmondragon/wardrobe-backend/api/validators"
	"github.com/angelmondragon/wardrobe-backend/internal/items"
	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	"github.com/angelmondragon/wardrobe-backend/pkg/pagination"
)

const (
	defaultUploadImages = 12
	defaultUploadBytes  = 15 << 20
	maxFormFieldBytes   = 4 << 10
)

// UploadLimits bounds the body of a create or edit request.
type UploadLimits struct {
	MaxImages     int
	MaxImageBytes int64
}

func (l UploadLimits) bodyLimit() int64 {
	images := int64(l.MaxImages)
	if images <= 0 {
		images = defaultUploadImages
	}
	perImage := l.MaxImageBytes
	if perImage <= 0 {
		perImage = defaultUploadBytes
	}
	// base64 inline images grow by a third
	return images*perImage*4/3 + 1<<20
}

type imageInput struct {
	URI  string `json:"uri,omitempty"`
	Data []byte `json:"data,omitempty"`
}

type saveItemRequest struct {
	Images   []imageInput `json:"images"`
	Category string       `json:"category"`
	Color    string       `json:"color"`
	Brand    string       `json:"brand"`
}

type deleteItemRequest struct {
	Confirm bool `json:"confirm"`
}

// ItemCreate saves a new wardrobe item from a JSON or multipart form.
func ItemCreate(svc items.Service, limits UploadLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, err := decodeSaveInput(w, r, limits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ItemEdit appends photos to an item and replaces its metadata.
func ItemEdit(svc items.Service, limits UploadLimits, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := decodeSaveInput(w, r, limits)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Edit(r.Context(), itemID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ItemDelete removes an item once the body carries {"confirm": true}.
func ItemDelete(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body deleteItemRequest
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxFormFieldBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
			return
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
				return
			}
		}

		if err := svc.Delete(r.Context(), itemID, items.Confirmed(body.Confirm)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted", "item_id": itemID.String()})
	}
}

// ItemList returns one page of the wardrobe grouped into sections.
func ItemList(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), items.ListParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ItemDetail returns an item with its ordered photos.
func ItemDetail(svc items.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := itemIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func itemIDParam(r *http.Request) (uuid.UUID, error) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid item id")
	}
	return itemID, nil
}

func decodeSaveInput(w http.ResponseWriter, r *http.Request, limits UploadLimits) (items.SaveInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.bodyLimit())

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		input items.SaveInput
		err   error
	)
	if mediaType == "multipart/form-data" {
		input, err = decodeMultipartSave(r)
	} else {
		input, err = decodeJSONSave(r)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return items.SaveInput{}, pkgerrors.Wrap(pkgerrors.CodeTooLarge, err,
				fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit))
		}
		return items.SaveInput{}, err
	}
	return input, nil
}

func decodeJSONSave(r *http.Request) (items.SaveInput, error) {
	var body saveItemRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return items.SaveInput{}, err
	}
	candidates := make([]items.Candidate, 0, len(body.Images))
	for _, img := range body.Images {
		candidates = append(candidates, items.Candidate{Source: strings.TrimSpace(img.URI), Content: img.Data})
	}
	return items.SaveInput{
		Images:   candidates,
		Category: body.Category,
		Color:    body.Color,
		Brand:    body.Brand,
	}, nil
}

// decodeMultipartSave reads text fields category, color, brand and images.
// Each images value is a remote URL or the name of a file part. Without
// images values every file part is used in upload order.
func decodeMultipartSave(r *http.Request) (items.SaveInput, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return items.SaveInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}

	var (
		input   items.SaveInput
		sources []string
		files   []string
	)
	parts := items.PartReader{}
	filenames := map[string]string{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return items.SaveInput{}, multipartError(err)
		}

		name := part.FormName()
		if part.FileName() == "" {
			value, err := io.ReadAll(io.LimitReader(part, maxFormFieldBytes))
			if err != nil {
				return items.SaveInput{}, multipartError(err)
			}
			text := validators.SanitizeString(string(value), maxFormFieldBytes)
			switch name {
			case "category":
				input.Category = text
			case "color":
				input.Color = text
			case "brand":
				input.Brand = text
			case "images":
				sources = append(sources, text)
			}
			continue
		}

		content, err := io.ReadAll(part)
		if err != nil {
			return items.SaveInput{}, multipartError(err)
		}
		key := name
		if _, taken := parts[key]; taken || key == "" {
			key = fmt.Sprintf("%s#%d", name, len(files))
		}
		parts[key] = content
		filenames[key] = part.FileName()
		files = append(files, key)
	}

	if len(sources) == 0 {
		sources = files
	}
	input.Images = make([]items.Candidate, 0, len(sources))
	for _, source := range sources {
		input.Images = append(input.Images, items.Candidate{Source: source, Name: filenames[source]})
	}
	input.Reader = parts
	return input, nil
}

func multipartError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
}
