package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/shelfscan/shelfscan/internal/api"
	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/validation"
)

// Category classifies an Outcome so callers can branch without string matching.
type Category int

const (
	CategorySuccess Category = iota
	CategoryValidation
	CategoryNetwork
	CategoryTimeout
	CategoryServer
	CategoryDuplicate
	CategoryUnauthorized
	CategoryBusy
	CategoryCancelled
)

func (c Category) String() string {
	switch c {
	case CategorySuccess:
		return "success"
	case CategoryValidation:
		return "validation"
	case CategoryNetwork:
		return "network"
	case CategoryTimeout:
		return "timeout"
	case CategoryServer:
		return "server"
	case CategoryDuplicate:
		return "duplicate"
	case CategoryUnauthorized:
		return "unauthorized"
	case CategoryBusy:
		return "busy"
	case CategoryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Next tells the caller where the flow goes after an operation.
type Next int

const (
	NextStay Next = iota
	NextScan
)

// Outcome is the user-facing result of a pipeline operation.
type Outcome struct {
	Category  Category
	Title     string
	Message   string
	Err       error
	Processed int
	Requested int
	Next      Next
}

func (o Outcome) OK() bool { return o.Category == CategorySuccess }

func (o Outcome) String() string {
	if o.Title == "" {
		return o.Message
	}
	return o.Title + ": " + o.Message
}

var (
	ErrEmptyBatch     = errors.New("no images to upload")
	ErrNoResults      = errors.New("no processed images to upload")
	ErrMissingBarcode = errors.New("no barcode scanned")
	ErrBusy           = errors.New("another submission is in progress")
	ErrNotSignedIn    = errors.New("not signed in")
	ErrStale          = errors.New("scan changed while request was in flight")
)

func success(title, msg string) Outcome {
	return Outcome{Category: CategorySuccess, Title: title, Message: msg}
}

func invalid(title string, err error) Outcome {
	return Outcome{Category: CategoryValidation, Title: title, Message: message(err), Err: err}
}

func message(err error) string {
	switch {
	case errors.Is(err, ErrEmptyBatch):
		return "No images to upload"
	case errors.Is(err, ErrNoResults):
		return "No processed images to upload"
	case errors.Is(err, ErrMissingBarcode):
		return "Scan a barcode first"
	case errors.Is(err, capture.ErrIndexOutOfRange):
		return "No image at that position"
	default:
		return err.Error()
	}
}

// classify maps a failed remote call onto an Outcome.
func classify(title string, err error) Outcome {
	o := Outcome{Title: title, Err: err}
	var se *api.StatusError
	switch {
	case errors.Is(err, context.Canceled):
		o.Category, o.Message = CategoryCancelled, "Request cancelled"
	case errors.Is(err, ErrStale):
		o.Category, o.Message = CategoryCancelled, "Scan changed before the request finished"
	case errors.Is(err, api.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		o.Category, o.Message = CategoryTimeout, "Upload timeout: Try with fewer images"
	case errors.Is(err, api.ErrNetwork):
		o.Category, o.Message = CategoryNetwork, "Network error: Unable to reach server"
	case api.IsDuplicate(err):
		o.Category, o.Title = CategoryDuplicate, "Duplicate found"
		o.Message = "Failed to upload images. Try with other product or SKU."
	case api.IsUnauthorized(err):
		o.Category, o.Message = CategoryUnauthorized, "Session expired: sign in again"
	case errors.As(err, &se):
		o.Category, o.Message = CategoryServer, se.Error()
	case errors.Is(err, ErrNotSignedIn):
		o.Category, o.Message = CategoryUnauthorized, "Sign in to upload images"
	case errors.Is(err, fs.ErrPermission):
		o.Category, o.Title = CategoryValidation, "Permission Required"
		o.Message = "Cannot read one of the images: " + err.Error()
	case errors.Is(err, validation.ErrInvalid):
		o.Category, o.Message = CategoryValidation, err.Error()
	default:
		o.Category, o.Message = CategoryServer, fmt.Sprintf("Failed to process images: %v", err)
	}
	return o
}
