package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Trace flattens an error for structured logs.
type Trace struct {
	Code  Code
	Chain []string
	PG    *PGFault
}

// PGFault is the postgres diagnostic attached to a failed statement.
type PGFault struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func TraceOf(err error) Trace {
	var t Trace
	if err == nil {
		return t
	}
	if typed := As(err); typed != nil {
		t.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		t.Chain = append(t.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		t.PG = &PGFault{
			Code: pgxErr.Code, Constraint: pgxErr.ConstraintName, Table: pgxErr.TableName,
			Column: pgxErr.ColumnName, Detail: pgxErr.Detail, Message: pgxErr.Message,
		}
	case stdErrors.As(err, &pqErr):
		t.PG = &PGFault{
			Code: string(pqErr.Code), Constraint: pqErr.Constraint, Table: pqErr.Table,
			Column: pqErr.Column, Detail: pqErr.Detail, Message: pqErr.Message,
		}
	}
	return t
}

// Fields renders the trace as log fields, leaving out what is empty.
func (t Trace) Fields() map[string]any {
	fields := map[string]any{}
	if t.Code != "" {
		fields["error_code"] = string(t.Code)
	}
	if len(t.Chain) > 0 {
		fields["error_chain"] = t.Chain
	}
	if pg := t.PG; pg != nil {
		for k, v := range map[string]string{
			"pg_code": pg.Code, "pg_constraint": pg.Constraint, "pg_table": pg.Table,
			"pg_column": pg.Column, "pg_detail": pg.Detail, "pg_message": pg.Message,
		} {
			if v != "" {
				fields[k] = v
			}
		}
	}
	return fields
}
