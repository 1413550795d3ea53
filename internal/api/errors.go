package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"docsearch/internal/loader"
	"docsearch/internal/service"
	"docsearch/internal/vectorstore"
)

type detailResponse struct {
	Detail any `json:"detail"`
}

// fieldError mirrors one entry of a FastAPI validation error list.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, vectorstore.ErrInvalidName), errors.Is(err, errBadFilename):
		return http.StatusUnprocessableEntity
	case errors.Is(err, vectorstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoDocuments), errors.Is(err, loader.ErrInvalidText):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := requestLogger(s.logger, r)
	if status >= 500 {
		log.Error("request failed", zap.Error(err))
	} else {
		log.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeDetail(w, status, err.Error())
}

// valid validates req and writes a 422 response listing the offending
// parameters when it does not pass.
func (s *Server) valid(w http.ResponseWriter, r *http.Request, req any) bool {
	err := s.validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.writeError(w, r, err)
		return false
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		loc := "query"
		if fe.Field() == "files" {
			loc = "body"
		}
		details = append(details, fieldError{Loc: []string{loc, fe.Field()}, Msg: "field required", Type: "value_error.missing"})
	}
	writeJSON(w, http.StatusUnprocessableEntity, detailResponse{Detail: details})
	return false
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
