package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	out := String()
	if !strings.HasPrefix(out, "version: dev\n") {
		t.Fatalf("unexpected version output %q", out)
	}
	if UserAgent() != "pricemon/dev" {
		t.Fatalf("unexpected user agent %q", UserAgent())
	}
}
