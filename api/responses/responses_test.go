package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
)

type declined struct{}

func (declined) Error() string { return "declined" }

func (declined) APIError() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotConfirmed, "delete not confirmed")
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func TestSuccessEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"name": "linen shirt"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var ok struct {
		Data map[string]string `json:"data"`
	}
	decodeInto(t, rec, &ok)
	if ok.Data["name"] != "linen shirt" {
		t.Fatalf("data %v", ok.Data)
	}

	rec = httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	WriteSuccess(rec, map[string]any{"stream": make(chan int)})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unencodable payload should be a 500, got %d", rec.Code)
	}
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		{
			name:        "validation keeps details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "category is required").WithDetails(map[string]string{"field": "category"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "category is required",
			wantDetails: true,
		},
		{
			name:    "plain error is internal",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		{
			name:    "internal message is masked",
			err:     pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("pq: relation items"), "list items"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		{
			name:    "coder supplies its own error",
			err:     declined{},
			status:  http.StatusConflict,
			code:    pkgerrors.CodeNotConfirmed,
			message: "delete not confirmed",
		},
		{
			name:   "nil still writes an error",
			err:    nil,
			status: http.StatusInternalServerError,
			code:   pkgerrors.CodeInternal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("status %d want %d", rec.Code, tc.status)
			}
			var body ErrorEnvelope
			decodeInto(t, rec, &body)
			if body.Error.Code != string(tc.code) {
				t.Fatalf("code %s want %s", body.Error.Code, tc.code)
			}
			if tc.message != "" && body.Error.Message != tc.message {
				t.Fatalf("message %q want %q", body.Error.Message, tc.message)
			}
			if (body.Error.Details != nil) != tc.wantDetails {
				t.Fatalf("details %v", body.Error.Details)
			}
		})
	}
}
