package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("build info must not be empty: %q %q %q", v, c, d)
	}
}

func TestGettersMatchInfo(t *testing.T) {
	v, c, d := Info()
	if GetVersion() != v {
		t.Errorf("GetVersion = %s, want %s", GetVersion(), v)
	}
	if GetCommit() != c {
		t.Errorf("GetCommit = %s, want %s", GetCommit(), c)
	}
	if GetDate() != d {
		t.Errorf("GetDate = %s, want %s", GetDate(), d)
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
}

func TestFields(t *testing.T) {
	fields := Fields()
	if fields["version"] != GetVersion() {
		t.Errorf("version field = %v, want %s", fields["version"], GetVersion())
	}
	if len(fields) != 3 {
		t.Errorf("expected 3 fields, got %d", len(fields))
	}
}
