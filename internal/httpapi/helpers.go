package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/menta2k/embedviz"
	"github.com/menta2k/embedviz/pkg/annotate"
	"github.com/menta2k/embedviz/pkg/viz"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrExpectedMultipart = errors.New("expected multipart/form-data")
	ErrUpstream          = errors.New("backend request failed")
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

var badRequest = []error{
	ErrBadRequest,
	ErrExpectedMultipart,
	viz.ErrMissingFile,
	viz.ErrMissingCaption,
	annotate.ErrEmptyLabel,
}

var conflict = []error{
	viz.ErrNoVisualization,
	viz.ErrStale,
	annotate.ErrNoImage,
	annotate.ErrNoRect,
	annotate.ErrStale,
	annotate.ErrNotPending,
	annotate.ErrBusy,
	embedviz.ErrNoImage,
}

var badGateway = []error{
	ErrUpstream,
	viz.ErrUploadRejected,
	viz.ErrEmptyEmbedding,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case isAny(err, badRequest):
		return http.StatusBadRequest, err.Error()
	case isAny(err, conflict):
		return http.StatusConflict, err.Error()
	case isAny(err, badGateway):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// upstream marks errors from calls that went through the backend. Known
// precondition errors keep their own status.
func upstream(err error) error {
	if err == nil || isAny(err, badRequest) || isAny(err, conflict) || isAny(err, badGateway) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", ErrBadRequest, err)
	}
	return nil
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return ErrExpectedMultipart
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// readUpload returns the first file sent as "file" or "files"
func readUpload(r *http.Request) (string, []byte, error) {
	for _, field := range []string{"file", "files"} {
		files := r.MultipartForm.File[field]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		src, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		defer src.Close()
		data, err := io.ReadAll(src)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return fh.Filename, data, nil
	}
	return "", nil, viz.ErrMissingFile
}
