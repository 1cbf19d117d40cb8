package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/retailcore/commerce_layer/internal/errors"
	"github.com/retailcore/commerce_layer/internal/httputil"
	"github.com/retailcore/commerce_layer/pkg/logger"
)

// SignatureHeader carries the HMAC of the request body on webhook callbacks,
// as sent by the Meta platforms.
const SignatureHeader = "X-Hub-Signature-256"

// WebhookSignatureMiddleware verifies the HMAC-SHA256 body signature on
// inbound webhook requests. An empty secret disables verification, for local
// development.
type WebhookSignatureMiddleware struct {
	secret []byte
	log    *logger.Logger
}

// NewWebhookSignatureMiddleware creates a signature verification middleware.
func NewWebhookSignatureMiddleware(secret string, log *logger.Logger) *WebhookSignatureMiddleware {
	if log == nil {
		log = logger.NewDefault("middleware")
	}
	return &WebhookSignatureMiddleware{secret: []byte(secret), log: log}
}

// Handler returns the middleware handler. The body is buffered so downstream
// handlers can re-read it.
func (m *WebhookSignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			se := errors.BadRequest("unreadable body")
			httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, nil)
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		if !m.verify(r.Header.Get(SignatureHeader), body) {
			m.log.WithField("path", r.URL.Path).Warn("webhook signature mismatch")
			se := errors.Unauthorized("invalid webhook signature")
			httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *WebhookSignatureMiddleware) verify(header string, body []byte) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, m.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign computes the signature header value for a body. Used by tests and by
// outbound callers that need to impersonate a platform webhook locally.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
