package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		code    Code
		status  int
		masked  bool
		details bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, details: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeIdempotency, status: http.StatusConflict, details: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests},
		{code: CodeInternal, status: http.StatusInternalServerError, masked: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, details: true},
		{code: CodeTooLarge, status: http.StatusRequestEntityTooLarge, details: true},
		{code: CodeNotConfirmed, status: http.StatusConflict},
		{code: "SOMETHING_UNKNOWN", status: http.StatusInternalServerError, masked: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			p := PolicyFor(tt.code)
			if p.Status != tt.status || p.Masked != tt.masked || p.Details != tt.details {
				t.Fatalf("unexpected policy %+v", p)
			}
			if p.Fallback == "" {
				t.Fatalf("every policy needs a fallback message")
			}
		})
	}
}

func TestPublic(t *testing.T) {
	details := map[string]any{"field": "email"}
	cases := []struct {
		name        string
		err         *Error
		message     string
		wantDetails bool
	}{
		{name: "own message and details", err: New(CodeValidation, "email is required").WithDetails(details), message: "email is required", wantDetails: true},
		{name: "details dropped", err: New(CodeUnauthorized, "invalid token").WithDetails(details), message: "invalid token"},
		{name: "internal masked", err: Wrap(CodeInternal, stdErrors.New("pq: relation missing"), "lookup user"), message: "internal server error"},
		{name: "empty message", err: New(CodeRateLimit, ""), message: "rate limit exceeded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, got := tc.err.Public()
			if msg != tc.message {
				t.Fatalf("message %q want %q", msg, tc.message)
			}
			if (got != nil) != tc.wantDetails {
				t.Fatalf("details %v, want present=%v", got, tc.wantDetails)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) || wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected wrap %v", wrapped)
	}
	if Wrap(CodeConflict, nil, "ctx").Unwrap() != nil {
		t.Fatalf("nil cause must stay nil")
	}
	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.Error() != "" {
		t.Fatalf("nil error should read as internal")
	}
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeNotConfirmed, "delete not confirmed")
	outer := fmt.Errorf("delete item: %w", inner)
	if !IsCode(outer, CodeNotConfirmed) {
		t.Fatalf("expected wrapped code to be detected")
	}
	if IsCode(outer, CodeConflict) || IsCode(stdErrors.New("plain"), CodeNotConfirmed) || As(nil) != nil {
		t.Fatalf("unexpected match")
	}
}

type codedErr struct{ api *Error }

func (c codedErr) Error() string    { return "coded" }
func (c codedErr) APIError() *Error { return c.api }

func TestAsHonorsCoder(t *testing.T) {
	err := fmt.Errorf("save: %w", codedErr{api: New(CodeDependency, "upload failed")})
	got := As(err)
	if got == nil || got.Code() != CodeDependency || got.Message() != "upload failed" {
		t.Fatalf("expected coder mapping, got %v", got)
	}
	if As(codedErr{}) != nil {
		t.Fatalf("nil mapping without a typed cause should yield nil")
	}
}

func TestTraceOf(t *testing.T) {
	if got := TraceOf(nil); got.Chain != nil || got.PG != nil {
		t.Fatalf("nil error should trace empty, got %+v", got)
	}

	pgx := Wrap(CodeInternal, fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key", TableName: "users"}), "create user")
	tr := TraceOf(pgx)
	if tr.Code != CodeInternal || len(tr.Chain) != 3 {
		t.Fatalf("unexpected trace %+v", tr)
	}
	if tr.PG == nil || tr.PG.Constraint != "users_email_key" {
		t.Fatalf("expected pgx fault, got %+v", tr.PG)
	}
	fields := tr.Fields()
	if fields["pg_table"] != "users" || fields["error_code"] != string(CodeInternal) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty fields must be left out")
	}

	pqTrace := TraceOf(fmt.Errorf("query: %w", &pq.Error{Code: "42P01", Message: "relation missing"}))
	if pqTrace.PG == nil || pqTrace.PG.Code != "42P01" || pqTrace.Code != "" {
		t.Fatalf("unexpected lib/pq trace %+v", pqTrace)
	}
}
