package httpresp

const (
	ErrUnauthorized       = "unauthorized"
	ErrMissingBearerToken = "bearer token is required"
	ErrInvalidToken       = "invalid token"
	ErrForbidden          = "forbidden"
	ErrFileNotFound       = "file not found"
	ErrUploadFailed       = "failed to upload file"
	ErrListFailed         = "failed to get files"
	ErrRenameFailed       = "failed to rename file"
	ErrShareFailed        = "failed to update file users"
	ErrDeleteFailed       = "failed to delete file"
	ErrUsageFailed        = "failed to compute storage usage"
	ErrDownloadFailed     = "failed to create download link"
	ErrAccountFailed      = "failed to create account"
	ErrFileRequired       = "multipart field 'file' is required"
	ErrUserNotFound       = "user not found"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type URLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

func NewFieldErrorResponse(field, message string) ErrorResponse {
	return ErrorResponse{Error: message, Field: field}
}

func NewOKResponse() OKResponse {
	return OKResponse{OK: true}
}

func NewURLResponse(url string, expiresInSeconds int) URLResponse {
	return URLResponse{URL: url, ExpiresIn: expiresInSeconds}
}

func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: len(items)}
}
