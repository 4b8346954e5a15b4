package gateway

import (
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

type upstream struct {
	prefix string
	target string
}

// Proxy forwards requests to the service owning the longest matching prefix.
type Proxy struct {
	upstreams []upstream
	timeout   time.Duration
	logger    *zap.Logger
}

// NewProxy builds the routing table from prefix to base URL.
func NewProxy(routes map[string]string, timeout time.Duration, logger *zap.Logger) *Proxy {
	p := &Proxy{timeout: timeout, logger: logger}
	for prefix, target := range routes {
		p.upstreams = append(p.upstreams, upstream{prefix: prefix, target: strings.TrimRight(target, "/")})
	}
	sort.Slice(p.upstreams, func(i, j int) bool {
		if len(p.upstreams[i].prefix) == len(p.upstreams[j].prefix) {
			return p.upstreams[i].prefix < p.upstreams[j].prefix
		}
		return len(p.upstreams[i].prefix) > len(p.upstreams[j].prefix)
	})
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Target returns the upstream base URL for path.
func (p *Proxy) Target(path string) (string, bool) {
	for _, u := range p.upstreams {
		if strings.HasPrefix(path, u.prefix) {
			return u.target, true
		}
	}
	return "", false
}

// Handler forwards the request upstream.
func (p *Proxy) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqPath, err := cleanPath(c)
		if err != nil {
			return err
		}
		target, ok := p.Target(reqPath)
		if !ok {
			return apperrors.NewNotFound("route", nil)
		}
		if err := proxy.DoTimeout(c, target+upstreamURI(c, reqPath), p.timeout); err != nil {
			p.logger.Warn("upstream request failed",
				zap.String("target", target),
				zap.String("path", c.Path()),
				zap.Error(err))
			return apperrors.NewDomainError(apperrors.CodeUpstreamUnavailable, "upstream unavailable", fiber.StatusBadGateway, nil)
		}
		c.Response().Header.Del(fiber.HeaderServer)
		return nil
	}
}
