package handler

import (
	"net/http"

	"github.com/buxmate/buxmate/internal/domain"
)

// clientInfo extracts request metadata for audit entries and sessions.
// RemoteAddr is already resolved by the RealIP middleware.
func clientInfo(r *http.Request) domain.ClientInfo {
	return domain.ClientInfo{
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
