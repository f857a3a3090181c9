package httpadapter

import (
	"net/http"

	"github.com/lexhub/legal-retrieval/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrQueryTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrIndexUnavailable),
		domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps infrastructure details out of responses; a
// timeout is the only outcome the caller can act on distinctly.
func publicErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid request"
	case domain.IsKind(err, domain.ErrQueryTimeout):
		return "query deadline exceeded"
	case domain.IsKind(err, domain.ErrIndexUnavailable),
		domain.IsKind(err, domain.ErrRetrievalUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return "retrieval temporarily unavailable"
	default:
		return "internal error"
	}
}
