package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/air-gapped/purist/internal/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Parse([]string{})
	if err != nil {
		t.Fatal(err)
	}
	return New(cfg, "test")
}

func post(t *testing.T, s *Server, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestPurify_StripsScript(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/purify", `<p>hi</p><script>alert(1)</script>`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}

	body := rec.Body.String()
	if strings.Contains(body, "script") {
		t.Errorf("script survived: %q", body)
	}
	if !strings.Contains(body, "<p>hi</p>") {
		t.Errorf("safe content lost: %q", body)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("X-Purist-Format"); got != "standard" {
		t.Errorf("X-Purist-Format = %q, want standard", got)
	}
}

func TestPurify_EmailFormat(t *testing.T) {
	s := testServer(t)

	input := `<amp-img src="a.png"></amp-img><amp-video src="v.mp4"></amp-video>`

	rec := post(t, s, "/purify?format=email", input)
	body := rec.Body.String()
	if strings.Contains(body, "amp-video") {
		t.Errorf("non-email component survived: %q", body)
	}
	if !strings.Contains(body, "amp-img") {
		t.Errorf("email component lost: %q", body)
	}
	if got := rec.Header().Get("X-Purist-Format"); got != "email" {
		t.Errorf("X-Purist-Format = %q, want email", got)
	}

	// Standard format keeps both.
	rec = post(t, s, "/purify?format=standard", input)
	if !strings.Contains(rec.Body.String(), "amp-video") {
		t.Errorf("component lost in standard format: %q", rec.Body.String())
	}
}

func TestPurify_DefaultFormatFromConfig(t *testing.T) {
	cfg, err := config.Parse([]string{"--default-format", "email"})
	if err != nil {
		t.Fatal(err)
	}
	s := New(cfg, "test")

	rec := post(t, s, "/purify", `<amp-video></amp-video>`)
	if strings.Contains(rec.Body.String(), "amp-video") {
		t.Errorf("configured email default not applied: %q", rec.Body.String())
	}
}

func TestPurify_InvalidFormat(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/purify?format=rss", `<p>x</p>`)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPurify_Prepass(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/purify?pre=bluemonday", `<div onclick="x()" style="position:fixed">c</div>`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if strings.Contains(body, "onclick") || strings.Contains(body, "style") {
		t.Errorf("unsafe attributes survived prepass path: %q", body)
	}

	rec = post(t, s, "/purify?pre=dompurify", `<p>x</p>`)
	if rec.Code != 400 {
		t.Errorf("unknown pre status = %d, want 400", rec.Code)
	}
}

func TestPurify_TripleProfile(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/purify?profile=triple", `<b>ok</b><a href="/x">l</a>`)
	body := rec.Body.String()
	if !strings.Contains(body, "<b>ok</b>") {
		t.Errorf("formatting tag lost: %q", body)
	}
	if strings.Contains(body, "href") {
		t.Errorf("attribute survived the raw-interpolation profile: %q", body)
	}

	rec = post(t, s, "/purify?profile=bogus", `<p>x</p>`)
	if rec.Code != 400 {
		t.Errorf("unknown profile status = %d, want 400", rec.Code)
	}
}

func TestPurify_Diff(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/purify?diff=1", `<amp-list></amp-list><amp-img></amp-img><div>x</div>`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "i-amphtml-key=") {
		t.Errorf("component not keyed: %q", body)
	}
	if !strings.Contains(body, "i-amphtml-ignore") {
		t.Errorf("diffable element not marked: %q", body)
	}

	rec = post(t, s, "/purify?diff=1&pre=bluemonday", `<p>x</p>`)
	if rec.Code != 400 {
		t.Errorf("diff+pre status = %d, want 400", rec.Code)
	}
}

func TestPurify_BodyTooLarge(t *testing.T) {
	cfg, err := config.Parse([]string{"--max-body-size", "16B"})
	if err != nil {
		t.Fatal(err)
	}
	s := New(cfg, "test")

	rec := post(t, s, "/purify", strings.Repeat("<p>x</p>", 100))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRender_MarkdownPurified(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/render", "# Hi\n\n<script>alert(1)</script>\n\n[link](javascript:alert(1))\n")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}

	body := rec.Body.String()
	if !strings.Contains(body, "<h1") {
		t.Errorf("heading lost: %q", body)
	}
	if strings.Contains(body, "script") {
		t.Errorf("raw HTML script survived render path: %q", body)
	}
	if strings.Contains(body, "javascript:") {
		t.Errorf("script URI survived render path: %q", body)
	}
}

func TestRender_InvalidFormat(t *testing.T) {
	s := testServer(t)

	rec := post(t, s, "/render?format=rss", "# Hi\n")
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/purify", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
