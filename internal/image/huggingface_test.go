package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

type captured struct {
	Method        string
	Authorization string
	ContentType   string
	Body          map[string]any
}

func newServer(t *testing.T, status int, body []byte) (*httptest.Server, *captured, *atomic.Int32) {
	t.Helper()
	c := &captured{}
	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		c.Method = r.Method
		c.Authorization = r.Header.Get("Authorization")
		c.ContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.Body)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, c, calls
}

func TestGenerate_Success(t *testing.T) {
	srv, c, _ := newServer(t, http.StatusOK, pngBytes(t, 64, 32))
	g := &HuggingFaceGenerator{Client: srv.Client(), Endpoint: srv.URL, Token: "hf_test"}

	out, err := g.Generate(context.Background(), NewParams("a red bicycle", Size{512, 512}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Format != "png" {
		t.Errorf("expected format png, got %q", out.Format)
	}
	if b := out.Image.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("unexpected bounds %v", b)
	}

	if c.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", c.Method)
	}
	if c.Authorization != "Bearer hf_test" {
		t.Errorf("unexpected authorization header %q", c.Authorization)
	}
	if c.ContentType != "application/json" {
		t.Errorf("unexpected content type %q", c.ContentType)
	}
	if c.Body["inputs"] != "a red bicycle" {
		t.Errorf("unexpected inputs %v", c.Body["inputs"])
	}
	params, _ := c.Body["parameters"].(map[string]any)
	want := map[string]float64{
		"width":               512,
		"height":              512,
		"num_inference_steps": 50,
		"guidance_scale":      7.5,
	}
	for k, v := range want {
		if params[k] != v {
			t.Errorf("parameter %s: expected %v, got %v", k, v, params[k])
		}
	}
}

func TestGenerate_SizesPassedThrough(t *testing.T) {
	for _, size := range []Size{{256, 256}, {512, 512}, {768, 768}, {640, 384}} {
		t.Run(size.String(), func(t *testing.T) {
			srv, c, _ := newServer(t, http.StatusOK, pngBytes(t, 8, 8))
			g := &HuggingFaceGenerator{Client: srv.Client(), Endpoint: srv.URL}

			if _, err := g.Generate(context.Background(), NewParams("p", size)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			params, _ := c.Body["parameters"].(map[string]any)
			if params["width"] != float64(size.Width) || params["height"] != float64(size.Height) {
				t.Errorf("expected %v, got width=%v height=%v", size, params["width"], params["height"])
			}
		})
	}
}

func TestGenerate_StatusError(t *testing.T) {
	srv, _, _ := newServer(t, http.StatusServiceUnavailable, []byte(`{"error":"loading"}`))
	g := &HuggingFaceGenerator{Client: srv.Client(), Endpoint: srv.URL}

	_, err := g.Generate(context.Background(), NewParams("a red bicycle", Size{512, 512}))
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", statusErr.StatusCode)
	}
	if err.Error() != "API request failed with status code: 503" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestGenerate_DecodeError(t *testing.T) {
	srv, _, _ := newServer(t, http.StatusOK, []byte("definitely not an image"))
	g := &HuggingFaceGenerator{Client: srv.Client(), Endpoint: srv.URL}

	_, err := g.Generate(context.Background(), NewParams("p", Size{256, 256}))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestGenerate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	g := &HuggingFaceGenerator{Client: http.DefaultClient, Endpoint: endpoint}
	_, err := g.Generate(context.Background(), NewParams("p", Size{256, 256}))
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestGenerate_EmptyPromptNeverCallsNetwork(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		srv, _, calls := newServer(t, http.StatusOK, pngBytes(t, 8, 8))
		g := &HuggingFaceGenerator{Client: srv.Client(), Endpoint: srv.URL}

		_, err := g.Generate(context.Background(), NewParams(prompt, Size{512, 512}))
		if !errors.Is(err, ErrEmptyPrompt) {
			t.Errorf("prompt %q: expected ErrEmptyPrompt, got %v", prompt, err)
		}
		if !IsValidation(err) {
			t.Errorf("prompt %q: expected validation error", prompt)
		}
		if calls.Load() != 0 {
			t.Errorf("prompt %q: expected no requests, got %d", prompt, calls.Load())
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{in: "512x512", want: Size{512, 512}},
		{in: " 768X432 ", want: Size{768, 432}},
		{in: "512", wantErr: true},
		{in: "axb", wantErr: true},
		{in: "0x512", wantErr: true},
		{in: "-1x5", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// smallest lossless 1x1 WebP
var webp1x1 = []byte{
	0x52, 0x49, 0x46, 0x46, 0x1a, 0x00, 0x00, 0x00, 0x57, 0x45, 0x42, 0x50,
	0x56, 0x50, 0x38, 0x4c, 0x0d, 0x00, 0x00, 0x00, 0x2f, 0x00, 0x00, 0x00,
	0x10, 0x07, 0x10, 0x11, 0x11, 0x88, 0x88, 0xfe, 0x07, 0x00,
}

func TestWebPFormatRegistered(t *testing.T) {
	_, format, err := stdimage.DecodeConfig(bytes.NewReader(webp1x1))
	if errors.Is(err, stdimage.ErrFormat) {
		t.Fatal("expected webp to be a registered image format")
	}
	if err == nil && format != "webp" {
		t.Errorf("expected webp format, got %q", format)
	}
}
