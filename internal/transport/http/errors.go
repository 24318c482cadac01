package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "credo/pkg/domain-errors"
)

// statusFor maps a domain error Code to the HTTP status every handler in
// this package replies with. Handlers never hand-pick a status themselves.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeInvalidRequest, dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeMissingConsent, dErrors.CodeInvalidConsent, dErrors.CodeInvalidCredentials,
		dErrors.CodeInvalidMfaCode, dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeAccountLocked, dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvalidState, dErrors.CodePrecondition:
		return http.StatusConflict
	case dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeDependencyDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	var de *dErrors.DomainError
	code := dErrors.CodeInternal
	message := "internal error"
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
	}
	writeJSON(w, statusFor(code), map[string]string{
		"code":    string(code),
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func dErrBadInput(field string) error {
	return dErrors.New(dErrors.CodeInvalidInput, "invalid or missing "+field)
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body")
	}
	return nil
}
