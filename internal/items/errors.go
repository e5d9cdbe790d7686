package items

import (
	"errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/wardrobe-backend/pkg/errors"
)

// ErrItemNotFound is returned by RecordStore lookups when the item does not
// exist or is owned by someone else.
var ErrItemNotFound = errors.New("item not found")

// ErrDeleteNotConfirmed is returned by Delete when the confirmer declines.
var ErrDeleteNotConfirmed = pkgerrors.New(pkgerrors.CodeNotConfirmed, "delete not confirmed")

// Kind classifies a save failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindUpload     Kind = "upload"
	KindRecord     Kind = "record"
)

// SaveError is returned by every failing Create and Edit. State is the state
// the workflow was in when it failed.
type SaveError struct {
	Kind  Kind
	State State
	Err   error
}

func (e *SaveError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.message()
	if e.Err != nil && e.Kind != KindValidation && e.Kind != KindNotFound {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SaveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// APIError maps the failure onto the shared error code space.
func (e *SaveError) APIError() *pkgerrors.Error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindValidation:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, e.Err, e.message())
	case KindAuth:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, e.Err, e.message())
	case KindNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, e.Err, e.message())
	case KindUpload:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, e.Err, e.message())
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, e.Err, e.message())
	}
}

func (e *SaveError) message() string {
	switch e.Kind {
	case KindValidation:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "invalid item"
	case KindAuth:
		return "could not resolve the signed in user"
	case KindNotFound:
		return "item not found"
	case KindUpload:
		return "could not upload images"
	default:
		return "could not save item"
	}
}

func validationError(format string, args ...any) *SaveError {
	return &SaveError{Kind: KindValidation, State: StateIdle, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the save error kind in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		return saveErr.Kind
	}
	return ""
}
