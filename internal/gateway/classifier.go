package gateway

import (
	"fmt"
	"net/http"
	"strings"
)

// Classification is the authentication requirement of a request.
type Classification int

const (
	Authenticated Classification = iota
	AlwaysOpen
	ConditionallyOpen
)

func (c Classification) String() string {
	switch c {
	case AlwaysOpen:
		return "always_open"
	case ConditionallyOpen:
		return "conditionally_open"
	default:
		return "authenticated"
	}
}

type segmentKind int

const (
	segmentLiteral segmentKind = iota
	segmentNumeric
	segmentAny
)

type segment struct {
	kind    segmentKind
	literal string
}

type template struct {
	source   string
	segments []segment
}

// Classifier decides whether a request needs a credential. It is built once
// at startup and safe for concurrent use.
type Classifier struct {
	prefixes  []string
	templates []template
	methods   map[string]struct{}
}

// NewClassifier compiles the open prefixes and conditionally-open templates.
// Templates are slash-separated; "{name}" matches one numeric segment and
// "{name:any}" any non-empty segment. Templates only open for the given
// methods, GET when none are given.
func NewClassifier(prefixes, templates []string, methods ...string) (*Classifier, error) {
	c := &Classifier{methods: make(map[string]struct{})}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			c.prefixes = append(c.prefixes, p)
		}
	}
	for _, raw := range templates {
		t, err := compileTemplate(raw)
		if err != nil {
			return nil, err
		}
		c.templates = append(c.templates, t)
	}
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	for _, m := range methods {
		c.methods[strings.ToUpper(m)] = struct{}{}
	}
	return c, nil
}

// Classify returns the requirement for the request. Prefix rules win over
// templates regardless of method.
func (c *Classifier) Classify(path, method string) Classification {
	for _, p := range c.prefixes {
		if strings.HasPrefix(path, p) {
			return AlwaysOpen
		}
	}
	if _, ok := c.methods[strings.ToUpper(method)]; !ok {
		return Authenticated
	}
	parts := splitPath(path)
	for _, t := range c.templates {
		if t.match(parts) {
			return ConditionallyOpen
		}
	}
	return Authenticated
}

func compileTemplate(raw string) (template, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") {
		return template{}, fmt.Errorf("route template %q must start with /", raw)
	}
	t := template{source: raw}
	for _, part := range splitPath(raw) {
		if !strings.HasPrefix(part, "{") {
			if strings.ContainsAny(part, "{}") {
				return template{}, fmt.Errorf("route template %q: bad segment %q", raw, part)
			}
			t.segments = append(t.segments, segment{kind: segmentLiteral, literal: part})
			continue
		}
		if !strings.HasSuffix(part, "}") || len(part) < 3 {
			return template{}, fmt.Errorf("route template %q: bad segment %q", raw, part)
		}
		name, kind, _ := strings.Cut(part[1:len(part)-1], ":")
		if name == "" {
			return template{}, fmt.Errorf("route template %q: unnamed parameter", raw)
		}
		switch kind {
		case "":
			t.segments = append(t.segments, segment{kind: segmentNumeric})
		case "any":
			t.segments = append(t.segments, segment{kind: segmentAny})
		default:
			return template{}, fmt.Errorf("route template %q: unknown parameter kind %q", raw, kind)
		}
	}
	return t, nil
}

func (t template) match(parts []string) bool {
	if len(parts) != len(t.segments) {
		return false
	}
	for i, seg := range t.segments {
		part := parts[i]
		switch seg.kind {
		case segmentLiteral:
			if part != seg.literal {
				return false
			}
		case segmentNumeric:
			if !isNumeric(part) {
				return false
			}
		case segmentAny:
			if part == "" {
				return false
			}
		}
	}
	return true
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
