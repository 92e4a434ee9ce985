package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"bankruptcywatch/ml"
	"bankruptcywatch/pipeline"
	"bankruptcywatch/session"
)

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeErr 把领域错误映射为状态码
func writeErr(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind}

	var schemaErr *pipeline.SchemaError
	if errors.As(err, &schemaErr) {
		resp.Details = schemaErr.Missing
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		resp.Error = "invalid request"
		for _, fe := range validationErrs {
			resp.Details = append(resp.Details, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	var (
		schemaErr   *pipeline.SchemaError
		limitErr    *pipeline.LimitError
		formatErr   *pipeline.FormatError
		labelErr    *ml.UnknownLabelError
		typeErr     *ml.FeatureTypeError
		mismatchErr *ml.FeatureMismatchError
		paramErr    *ml.ParamError
		untrained   *ml.UntrainedModelError
		tooLarge    *http.MaxBytesError
		requestErr  *RequestError
		validation  validator.ValidationErrors
		syntaxErr   *json.SyntaxError
		typeJSONErr *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity, "schema_error"
	case errors.As(err, &labelErr):
		return http.StatusUnprocessableEntity, "unknown_label"
	case errors.As(err, &typeErr):
		return http.StatusUnprocessableEntity, "feature_type_error"
	case errors.Is(err, ml.ErrEmptyDataset):
		return http.StatusUnprocessableEntity, "empty_dataset"
	case errors.As(err, &limitErr):
		return http.StatusUnprocessableEntity, "limit_exceeded"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request_too_large"
	case errors.As(err, &formatErr):
		return http.StatusBadRequest, "format_error"
	case errors.As(err, &mismatchErr):
		return http.StatusBadRequest, "feature_mismatch"
	case errors.As(err, &paramErr):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, ml.ErrInvalidModel):
		return http.StatusBadRequest, "invalid_model"
	case errors.As(err, &requestErr), errors.As(err, &validation),
		errors.As(err, &syntaxErr), errors.As(err, &typeJSONErr):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &untrained):
		return http.StatusConflict, "untrained_model"
	case errors.Is(err, pipeline.ErrNoDataset):
		return http.StatusConflict, "no_dataset"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
