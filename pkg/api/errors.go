package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// mapServiceError is the single adaptation point that turns a typed error
// from any component into an HTTP status, per the error taxonomy. Every
// handler funnels its error return through this function rather than
// inspecting error kinds itself.
func mapServiceError(err error) *echo.HTTPError {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case apierr.KindAuthMissing, apierr.KindAuthInvalid, apierr.KindAuthRevoked:
			return echo.NewHTTPError(http.StatusUnauthorized, apiErr.Error())
		case apierr.KindRateLimited:
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		case apierr.KindPermissionDenied:
			return echo.NewHTTPError(http.StatusForbidden, apiErr.Error())
		case apierr.KindBadRequest:
			return echo.NewHTTPError(http.StatusBadRequest, apiErr.Error())
		case apierr.KindTaskTimedOut:
			return echo.NewHTTPError(http.StatusRequestTimeout, apiErr.Error())
		case apierr.KindTaskFailed:
			return echo.NewHTTPError(http.StatusInternalServerError, apiErr.Error())
		case apierr.KindUpstreamUnavailable:
			return echo.NewHTTPError(http.StatusInternalServerError, apiErr.Error())
		case apierr.KindUpstreamRejected:
			return echo.NewHTTPError(http.StatusBadGateway, apiErr.Error())
		case apierr.KindUpstreamRateLimited:
			return echo.NewHTTPError(http.StatusTooManyRequests, "upstream rate limited")
		case apierr.KindNotImplemented:
			return echo.NewHTTPError(http.StatusNotImplemented, apiErr.Error())
		}
	}

	var ledgerErr *ledger.Error
	if errors.As(err, &ledgerErr) {
		switch ledgerErr.Kind {
		case ledger.KindBudgetExceeded:
			return echo.NewHTTPError(http.StatusTooManyRequests, "budget exceeded")
		case ledger.KindNotFound:
			return echo.NewHTTPError(http.StatusNotFound, ledgerErr.Error())
		case ledger.KindStorageUnavailable:
			return echo.NewHTTPError(http.StatusInternalServerError, "storage unavailable")
		}
	}

	var trackerErr *tracker.Error
	if errors.As(err, &trackerErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, trackerErr.Error())
	}

	slog.Error("unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
