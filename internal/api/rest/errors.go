package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clustermgr/engine/internal/models"
	"github.com/clustermgr/engine/internal/pkg/logger"
)

// APIError is the structured error envelope every failed request returns.
type APIError struct {
	Error     string            `json:"error"`
	Code      string            `json:"code,omitempty"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Error codes surfaced to clients; one per error kind in the domain model.
const (
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeBadRequest            = "BAD_REQUEST"
	ErrCodeInvalidSpec           = "INVALID_SPEC"
	ErrCodeInvalidParameter      = "INVALID_PARAMETER"
	ErrCodeResourceInUse         = "RESOURCE_IN_USE"
	ErrCodeResourceBusy          = "RESOURCE_BUSY"
	ErrCodePolicyBindingNotFound = "POLICY_BINDING_NOT_FOUND"
	ErrCodeProfileTypeNotMatch   = "PROFILE_TYPE_NOT_MATCH"
	ErrCodeNodeNotOrphan         = "NODE_NOT_ORPHAN"
	ErrCodeFeatureNotSupported   = "FEATURE_NOT_SUPPORTED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// respondError maps the typed error hierarchy onto HTTP status + code.
// Messages for every kind except Internal are propagated to the client
// verbatim; Internal failures get a generic message and a server-side log.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := logger.FromContext(r.Context())
	status, code := http.StatusInternalServerError, ErrCodeInternal
	msg := err.Error()

	var (
		notFound     *models.NotFoundError
		badRequest   *models.BadRequestError
		invalidSpec  *models.InvalidSpecError
		invalidParam *models.InvalidParameterError
		inUse        *models.ResourceInUseError
		busy         *models.ResourceBusyError
		bindNotFound *models.PolicyBindingNotFoundError
		typeMismatch *models.ProfileTypeNotMatchError
		notOrphan    *models.NodeNotOrphanError
		notSupported *models.FeatureNotSupportedError
		forbidden    *models.ForbiddenError
	)
	switch {
	case errors.As(err, &notFound):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.As(err, &badRequest):
		status, code = http.StatusBadRequest, ErrCodeBadRequest
	case errors.As(err, &invalidSpec):
		status, code = http.StatusBadRequest, ErrCodeInvalidSpec
	case errors.As(err, &invalidParam):
		status, code = http.StatusBadRequest, ErrCodeInvalidParameter
	case errors.As(err, &inUse):
		status, code = http.StatusConflict, ErrCodeResourceInUse
	case errors.As(err, &busy):
		status, code = http.StatusConflict, ErrCodeResourceBusy
	case errors.As(err, &bindNotFound):
		status, code = http.StatusNotFound, ErrCodePolicyBindingNotFound
	case errors.As(err, &typeMismatch):
		status, code = http.StatusBadRequest, ErrCodeProfileTypeNotMatch
	case errors.As(err, &notOrphan):
		status, code = http.StatusConflict, ErrCodeNodeNotOrphan
	case errors.As(err, &notSupported):
		status, code = http.StatusNotImplemented, ErrCodeFeatureNotSupported
	case errors.As(err, &forbidden):
		status, code = http.StatusForbidden, ErrCodeForbidden
	default:
		logger.StdLogger().Error("internal error", "request_id", reqID, "error", err)
		msg = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Error:     msg,
		Code:      code,
		Message:   msg,
		RequestID: reqID,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
