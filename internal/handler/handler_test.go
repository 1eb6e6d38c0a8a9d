package handler

import (
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmorgan81/text2img/internal/feed"
	"github.com/dmorgan81/text2img/internal/image"
	"github.com/dmorgan81/text2img/internal/page"
	"github.com/dmorgan81/text2img/internal/store"
	"gopkg.in/yaml.v3"
)

type recordingUploader struct {
	names []string
	err   error
}

func (r *recordingUploader) Upload(_ context.Context, p store.UploadParams) error {
	r.names = append(r.names, p.Name)
	return r.err
}

type recordingInvalidator struct {
	paths []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths []string) error {
	r.paths = append(r.paths, paths...)
	return nil
}

func newHandler(dir string, mirrors []store.Uploader, inv store.Invalidator, prefix string) *Handler {
	return New(&store.FileUploader{Dir: dir}, mirrors, inv,
		&feed.Generator{Dir: dir, Title: "Gallery"}, &page.Templator{}, prefix)
}

func testInput(ts time.Time) Input {
	return Input{
		Image:  stdimage.NewRGBA(stdimage.Rect(0, 0, 40, 20)),
		Params: image.NewParams("a red bicycle", image.Size{Width: 512, Height: 512}),
		Format: "png",
		Time:   ts,
	}
}

func TestSave_WritesImageSidecarAndGallery(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "generated_images")
	h := newHandler(dir, nil, nil, "")
	ts := time.Date(2026, 10, 18, 9, 5, 7, 0, time.Local)

	out, err := h.Save(context.Background(), testInput(ts))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Path != filepath.Join(dir, "image_20261018_090507.png") {
		t.Errorf("unexpected path %q", out.Path)
	}

	f, err := os.Open(out.Path)
	if err != nil {
		t.Fatalf("expected image to exist: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("expected valid png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("unexpected bounds %v", b)
	}

	data, err := os.ReadFile(filepath.Join(dir, "image_20261018_090507.yaml"))
	if err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	var entry feed.Entry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		t.Fatalf("invalid sidecar: %v", err)
	}
	if entry.Prompt != "a red bicycle" || entry.Width != 512 || entry.Steps != 50 || entry.Guidance != 7.5 {
		t.Errorf("unexpected sidecar %+v", entry)
	}

	rss, _ := os.ReadFile(filepath.Join(dir, "feed.xml"))
	if !strings.Contains(string(rss), "image_20261018_090507.png") {
		t.Errorf("expected feed to list saved image:\n%s", rss)
	}
	html, _ := os.ReadFile(filepath.Join(dir, "index.html"))
	if !strings.Contains(string(html), "image_20261018_090507.png") {
		t.Errorf("expected index to list saved image:\n%s", html)
	}
}

func TestSave_SameSecondDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	h := newHandler(dir, nil, nil, "")
	ts := time.Date(2026, 10, 18, 9, 5, 7, 0, time.Local)

	first, err := h.Save(context.Background(), testInput(ts))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, _ := os.ReadFile(first.Path)

	second := testInput(ts.Add(500 * time.Millisecond))
	second.Image = stdimage.NewRGBA(stdimage.Rect(0, 0, 10, 10))
	if _, err := h.Save(context.Background(), second); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist, got %v", err)
	}

	after, _ := os.ReadFile(first.Path)
	if string(before) != string(after) {
		t.Error("expected first image to be left untouched")
	}

	third, err := h.Save(context.Background(), testInput(ts.Add(time.Second)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Path == first.Path {
		t.Error("expected a different file name one second later")
	}
}

func TestSave_NoImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "generated_images")
	h := newHandler(dir, nil, nil, "")

	if _, err := h.Save(context.Background(), Input{}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected no output directory, got %v", err)
	}
}

func TestSave_MirrorsAndInvalidates(t *testing.T) {
	mirror := &recordingUploader{}
	inv := &recordingInvalidator{}
	h := newHandler(t.TempDir(), []store.Uploader{mirror}, inv, "gallery")
	ts := time.Date(2026, 10, 18, 9, 5, 7, 0, time.Local)

	if _, err := h.Save(context.Background(), testInput(ts)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"image_20261018_090507.png", "image_20261018_090507.yaml", "feed.xml", "index.html"}
	if strings.Join(mirror.names, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected mirrored objects %v", mirror.names)
	}
	if len(inv.paths) != 4 || inv.paths[0] != "/gallery/image_20261018_090507.png" {
		t.Errorf("unexpected invalidated paths %v", inv.paths)
	}
}

func TestSave_MirrorFailureKeepsLocalCopy(t *testing.T) {
	mirror := &recordingUploader{err: errors.New("access denied")}
	h := newHandler(t.TempDir(), []store.Uploader{mirror}, nil, "")

	out, err := h.Save(context.Background(), testInput(time.Now()))
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected mirror error, got %v", err)
	}
	if out.Path == "" {
		t.Fatal("expected local path despite mirror failure")
	}
	if _, err := os.Stat(out.Path); err != nil {
		t.Errorf("expected local image: %v", err)
	}
}

// headerCheckingS3 rejects metadata that net/http would refuse to send.
type headerCheckingS3 struct {
	keys []string
}

func (h *headerCheckingS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	for k, v := range in.Metadata {
		for _, r := range v {
			if r < ' ' || r > '~' {
				return nil, fmt.Errorf("invalid header field value for %q", "X-Amz-Meta-"+k)
			}
		}
	}
	h.keys = append(h.keys, aws.ToString(in.Key))
	return &s3.PutObjectOutput{}, nil
}

func TestSave_MirrorsMultilineUnicodePrompt(t *testing.T) {
	client := &headerCheckingS3{}
	mirror := &store.S3Uploader{Client: client, Bucket: "images"}
	h := newHandler(t.TempDir(), []store.Uploader{mirror}, nil, "")

	input := testInput(time.Date(2026, 10, 18, 9, 5, 7, 0, time.Local))
	input.Params.Prompt = "a red bicycle\nat dusk, café in Zürich"

	out, err := h.Save(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Path == "" {
		t.Fatal("expected local path")
	}
	if len(client.keys) != 4 || client.keys[0] != "image_20261018_090507.png" {
		t.Errorf("unexpected mirrored keys %v", client.keys)
	}

	data, _ := os.ReadFile(filepath.Join(filepath.Dir(out.Path), "image_20261018_090507.yaml"))
	var entry feed.Entry
	if err := yaml.Unmarshal(data, &entry); err != nil || entry.Prompt != input.Params.Prompt {
		t.Errorf("expected sidecar to keep raw prompt, got %q (%v)", entry.Prompt, err)
	}
}
