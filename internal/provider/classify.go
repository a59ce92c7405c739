package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/normalize"
)

// statusCoder is implemented by vendor API errors.
type statusCoder interface {
	HTTPStatus() int
}

// Classify maps a backend error to an ErrorKind. callCtx is the context the
// backend ran under; parent is the caller's context.
func Classify(parent, callCtx context.Context, err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrorKindNone
	}

	// The caller went away before the budget expired.
	if parent != nil && errors.Is(parent.Err(), context.Canceled) {
		return domain.ErrorKindCanceled
	}
	if callCtx != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return domain.ErrorKindTimeout
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return domain.ErrorKindCanceled
	case errors.Is(err, normalize.ErrInvalidPayload):
		return domain.ErrorKindInvalidPayload
	case errors.Is(err, normalize.ErrParse):
		return domain.ErrorKindParse
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch code := sc.HTTPStatus(); {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return domain.ErrorKindAuth
		case code == http.StatusTooManyRequests:
			return domain.ErrorKindRateLimited
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return domain.ErrorKindTimeout
		default:
			return domain.ErrorKindUpstream
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return domain.ErrorKindParse
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.ErrorKindTimeout
		}
		return domain.ErrorKindNetwork
	}

	return domain.ErrorKindUpstream
}
