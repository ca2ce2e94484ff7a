package types

// Error codes shared across handlers. Resource specific codes follow the
// <RESOURCE>_<HTTP status> pattern, e.g. DEPLOY_404.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeSchema       = "SCHEMA_ERROR"
	CodeValidation   = "VALIDATION_ERROR"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, a validation report, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NewValidationResponse wraps a validation report so clients always find it
// under error.details.
func NewValidationResponse(message string, report any) ErrorResponse {
	return NewErrorResponse(CodeValidation, message, report)
}
