package gateway

import (
	"net/url"
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

// cleanPath resolves percent-escapes and dot segments in the request path so
// the gate classifies, and the proxy forwards, the resource an upstream would
// actually serve.
func cleanPath(c *fiber.Ctx) (string, error) {
	raw := string(c.Request().URI().PathOriginal())
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", apperrors.NewValidationError("malformed request path", nil)
	}
	if decoded == "" || decoded[0] != '/' {
		decoded = "/" + decoded
	}
	cleaned := path.Clean(decoded)
	if strings.HasSuffix(decoded, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned, nil
}

// upstreamURI is the cleaned path, re-escaped, plus the original query string.
func upstreamURI(c *fiber.Ctx, cleaned string) string {
	uri := (&url.URL{Path: cleaned}).EscapedPath()
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		uri += "?" + string(q)
	}
	return uri
}
