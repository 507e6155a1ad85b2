package http

import (
	"net/http"

	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	"github.com/AlibekovAA/videotube/backend/internal/common/httpmetrics"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
)

func BuildBaseHandler(appName string, log *logger.Logger, corsOrigins []string, handler http.Handler) http.Handler {
	metrics := httpmetrics.New(appName)
	recovery := RecoveryMiddleware(log)
	traceID := TraceIDMiddleware
	maxRequestSize := MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize)
	securityHeaders := SecurityHeadersMiddleware
	csp := ContentSecurityPolicyMiddleware("")
	corsHandler := CORSMiddleware(corsOrigins)

	return corsHandler(securityHeaders(csp(traceID(recovery(maxRequestSize(metrics.Wrap(handler)))))))
}
