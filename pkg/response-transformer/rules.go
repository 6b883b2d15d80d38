package responsetransformer

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// Headers is the part of a header map the rules touch.
type Headers interface {
	Get(name string) string
	Set(name, value string)
}

type Rules []Rule

// Rule sets Cache-Control (and optionally other headers) on matching origin responses.
// The first matching rule wins.
type Rule struct {
	Prefix string `yaml:"prefix" json:"prefix,omitempty"`
	Path   string `yaml:"path" json:"path,omitempty"`
	// Method to match, GET if empty.
	Method   string            `yaml:"method" json:"method,omitempty"`
	Host     string            `yaml:"host" json:"host,omitempty"`
	Default  string            `yaml:"default" json:"default,omitempty"`
	Override string            `yaml:"override" json:"override,omitempty"`
	Query    map[string]string `yaml:"query" json:"query,omitempty"`
	Headers  map[string]string `yaml:"headers" json:"headers,omitempty"`
}

// Apply applies the first rule matching the request to the response headers.
// It reports whether a rule was applied.
func (r Rules) Apply(method, rawURL string, statusCode int, headers Headers) bool {
	// only apply rules for successes
	if statusCode != http.StatusOK {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		log.Trace().Err(err).Str("url", rawURL).Msg("Not applying rules to unparseable url")
		return false
	}
	// if rule found, apply to response
	if rule := r.find(method, u); rule != nil {
		applyRule(*rule, headers)
		return true
	}
	return false
}

func applyRule(rule Rule, headers Headers) {
	if rule.Override != "" {
		log.Trace().Msg("Overriding Cache-Control header")
		headers.Set("Cache-Control", rule.Override)
	} else if rule.Default != "" && headers.Get("Cache-Control") == "" {
		log.Trace().Msg("Applying default Cache-Control header")
		headers.Set("Cache-Control", rule.Default)
	}
	for name, value := range rule.Headers {
		log.Trace().Msgf("Setting header %s", name)
		headers.Set(name, value)
	}
}

func (r Rules) find(method string, u *url.URL) *Rule {
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	log.Trace().Msgf("Finding rule for request %s:%s", method, path)
rulesLoop:
	for _, rule := range r {
		if rule.Method == "" && method != http.MethodGet {
			continue
		}
		if rule.Method != "" && !strings.EqualFold(rule.Method, method) {
			continue
		}
		if rule.Host != "" && !strings.EqualFold(rule.Host, u.Hostname()) {
			continue
		}
		if rule.Path != "" && rule.Path != path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := u.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		return &rule
	}
	return nil
}
