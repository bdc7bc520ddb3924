package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	e := echo.New()
	body := bytes.NewReader([]byte(`{"name":"test"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}

	mw := BodyLimit("1M", "10M")
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called for small body")
	}
}

func TestBodyLimit_RejectsOversizeBody(t *testing.T) {
	e := echo.New()
	largeBody := bytes.Repeat([]byte("x"), 2048)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", bytes.NewReader(largeBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}

	mw := BodyLimit("1K", "10M")
	err := mw(handler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", httpErr.Code)
	}
}

func TestBodyLimit_UsesLargerLimitForUploads(t *testing.T) {
	e := echo.New()
	uploadBody := bytes.Repeat([]byte("x"), 2048)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", bytes.NewReader(uploadBody))
	req.Header.Set("Content-Type", "multipart/form-data")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	handler := func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}

	// Default limit is 1K but upload limit is 10M — the upload endpoint
	// accepts the larger payload.
	mw := BodyLimit("1K", "10M")
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called for upload endpoint within limit")
	}
}

func TestParseLimit(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1K", 1024},
		{"1M", 1 << 20},
		{"2M", 2 << 20},
		{"1G", 1 << 30},
		{"512", 512},
		{"", 1 << 20},
		{"garbage", 1 << 20},
	}
	for _, tc := range cases {
		if got := parseLimit(tc.in); got != tc.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
