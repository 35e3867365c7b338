package server

import (
	"encoding/json"
	"errors"
	"net/http"

	kerrors "github.com/knitfamily/knit/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError maps err to a status code by its error code. Uncoded errors
// are internal and their text is not exposed.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	code := kerrors.GetCode(err)
	msg := kerrors.UserMessage(err)
	if code == "" {
		code = kerrors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		if code == kerrors.ErrCodeInternal || code == kerrors.ErrCodeStorage {
			msg = "internal error"
		}
	}
	respondJSON(w, status, errorResponse{Error: msg, Code: string(code)})
}

func httpStatus(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	switch kerrors.GetCode(err).Category() {
	case kerrors.CategoryNotFound:
		return http.StatusNotFound
	case kerrors.CategoryInvalid:
		return http.StatusBadRequest
	case kerrors.CategoryConflict:
		return http.StatusConflict
	case kerrors.CategoryThrottled:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
