//go:build unit

package logredact

import (
	"strings"
	"testing"
)

func TestRedactText_JSONBody(t *testing.T) {
	in := `{"access_token":"vca_live_SECRET","refresh_token":"vcr_live_SECRET","plan":"pro"}`
	out := RedactText(in)
	if out == in {
		t.Fatalf("expected redaction, got unchanged input")
	}
	if !strings.Contains(out, `"access_token":"***"`) {
		t.Fatalf("access_token not redacted: %q", out)
	}
	if !strings.Contains(out, `"refresh_token":"***"`) {
		t.Fatalf("refresh_token not redacted: %q", out)
	}
	if !strings.Contains(out, `"plan":"pro"`) {
		t.Fatalf("non-sensitive field mangled: %q", out)
	}
}

func TestRedactText_QueryString(t *testing.T) {
	in := "exchange failed: POST /v2/oauth/access_token?code=xKq93&code_verifier=dBjftJeZ4CVP"
	out := RedactText(in)
	if strings.Contains(out, "xKq93") || strings.Contains(out, "dBjftJeZ4CVP") {
		t.Fatalf("expected query values redacted, got %q", out)
	}
	if !strings.Contains(out, "code=***") {
		t.Fatalf("expected code=*** in %q", out)
	}
}

func TestRedactText_BearerHeader(t *testing.T) {
	in := `request rejected, sent "Authorization: Bearer sbp_0102030405"`
	out := RedactText(in)
	if strings.Contains(out, "sbp_0102030405") {
		t.Fatalf("expected bearer token redacted, got %q", out)
	}
	if !strings.Contains(out, "Bearer ***") {
		t.Fatalf("expected Bearer *** in %q", out)
	}
}

func TestRedactText_PlainTextUntouched(t *testing.T) {
	in := "project not found"
	if out := RedactText(in); out != in {
		t.Fatalf("expected %q unchanged, got %q", in, out)
	}
}
