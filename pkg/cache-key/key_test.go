package cachekey

import (
	"testing"
)

func TestKeyString(t *testing.T) {
	key := New("", "HTTPS://A.test/x?y=1#frag")
	if s := key.String(); s != "GET:https://a.test/x?y=1" {
		t.Fatalf("Key is %s", s)
	}
}

func TestKeyMethod(t *testing.T) {
	if key := New("post", "https://a.test/"); key.Method != "POST" {
		t.Fatalf("Method is %s", key.Method)
	}
}

func TestKeyRootPath(t *testing.T) {
	if New("GET", "https://a.test") != New("GET", "https://a.test/") {
		t.Fatal("Empty path and root path differ")
	}
}

func TestUnparseableURL(t *testing.T) {
	if u := NormalizeURL("http://[::1"); u != "http://[::1" {
		t.Fatalf("URL is %s", u)
	}
}
