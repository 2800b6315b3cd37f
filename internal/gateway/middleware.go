package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/smiling-critters/critter-gateway/internal/httputil"
)

// RequestID propagates X-Request-ID, generating one when absent. Handlers
// read it back from the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(httputil.HeaderRequestID)
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set(httputil.HeaderRequestID, reqID)
		next.ServeHTTP(w, r)
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
