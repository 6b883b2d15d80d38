package rfc9111

import (
	"testing"
	"time"
)

func TestAge(t *testing.T) {
	storedAt := time.Now()
	if age := Age(storedAt, storedAt.Add(7200*time.Second+time.Millisecond)); age != "7200" {
		t.Fatalf("Age is %s", age)
	}
	if age := Age(storedAt, storedAt.Add(-time.Second)); age != "0" {
		t.Fatalf("Age before storage is %s", age)
	}
}
