package responsetransformer

import (
	"net/http"
	"net/url"
	"testing"
)

func TestRuleFinder(t *testing.T) {
	rules := Rules{
		Rule{Prefix: "/wp-", Override: "no-cache"},
		Rule{Host: "static.test", Override: "max-age=86400"},
		Rule{Path: "/search", Query: map[string]string{"q": ""}, Override: "no-store"},
		Rule{Method: "post", Prefix: "/api", Override: "max-age=5"},
		Rule{Override: "default"},
	}
	find := func(method, rawURL string) *Rule {
		u, err := url.Parse(rawURL)
		if err != nil {
			t.Fatal(err)
		}
		return rules.find(method, u)
	}

	if rule := find("GET", "https://a.test"); rule == nil || rule.Override != "default" {
		t.Fatal("Incorrect rule")
	}
	if rule := find("", "https://a.test/wp-admin"); rule == nil || rule.Override != "no-cache" {
		t.Fatal("Incorrect rule")
	}
	if rule := find("GET", "https://STATIC.test/app.js"); rule == nil || rule.Override != "max-age=86400" {
		t.Fatal("Incorrect rule")
	}
	if rule := find("GET", "https://a.test/search?q=go"); rule == nil || rule.Override != "no-store" {
		t.Fatal("Incorrect rule")
	}
	if rule := find("GET", "https://a.test/search"); rule == nil || rule.Override != "default" {
		t.Fatal("Incorrect rule")
	}
	if rule := find("POST", "https://a.test/api/x"); rule == nil || rule.Override != "max-age=5" {
		t.Fatal("Incorrect rule")
	}
	if rule := find("POST", "https://a.test/wp-admin"); rule != nil {
		t.Fatal("Incorrect rule")
	}
}

type testHeaders map[string]string

func (h testHeaders) Get(name string) string { return h[http.CanonicalHeaderKey(name)] }

func (h testHeaders) Set(name, value string) { h[http.CanonicalHeaderKey(name)] = value }

func TestApply(t *testing.T) {
	headers := testHeaders{}
	ruleDefault := Rule{Default: "default", Headers: map[string]string{"x-rule": "1"}}
	ruleOverride := Rule{Override: "override"}

	// try to apply default
	applyRule(ruleDefault, headers)
	if cc := headers.Get("Cache-Control"); cc != "default" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}
	if headers.Get("X-Rule") != "1" {
		t.Fatal("Extra header not set")
	}

	// change cc and check default is not set
	headers.Set("Cache-Control", "no-cache")
	applyRule(ruleDefault, headers)
	if cc := headers.Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}

	// check that override works
	applyRule(ruleOverride, headers)
	if cc := headers.Get("Cache-Control"); cc != "override" {
		t.Fatalf("Cache-Control header wrong, is '%s'", cc)
	}
}

func TestApplyOnlySuccesses(t *testing.T) {
	rules := Rules{Rule{Override: "max-age=10"}}
	headers := testHeaders{}
	if rules.Apply("GET", "https://a.test/", http.StatusNotFound, headers) {
		t.Fatal("Rule applied to 404")
	}
	if !rules.Apply("GET", "https://a.test/", http.StatusOK, headers) || headers.Get("Cache-Control") != "max-age=10" {
		t.Fatal("Rule not applied")
	}
}
