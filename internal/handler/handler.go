package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"image/png"
	"path"
	"strconv"
	"time"

	"github.com/dmorgan81/text2img/internal/feed"
	"github.com/dmorgan81/text2img/internal/image"
	"github.com/dmorgan81/text2img/internal/log"
	"github.com/dmorgan81/text2img/internal/page"
	"github.com/dmorgan81/text2img/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// Input is a snapshot of the displayed image and the request that produced it.
type Input struct {
	Image  stdimage.Image
	Params image.Params
	Format string
	Time   time.Time
}

func (i Input) toEntry(name string) feed.Entry {
	return feed.Entry{
		File:      name,
		Prompt:    i.Params.Prompt,
		Width:     i.Params.Width,
		Height:    i.Params.Height,
		Steps:     i.Params.Steps,
		Guidance:  i.Params.Guidance,
		Format:    i.Format,
		CreatedAt: i.Time,
	}
}

func (i Input) toMetadata() map[string]string {
	return map[string]string{
		"prompt":   i.Params.Prompt,
		"size":     fmt.Sprintf("%dx%d", i.Params.Width, i.Params.Height),
		"steps":    strconv.Itoa(i.Params.Steps),
		"guidance": strconv.FormatFloat(i.Params.Guidance, 'g', -1, 64),
	}
}

type Output struct {
	Name string
	Path string
}

type Handler struct {
	local       *store.FileUploader
	mirrors     []store.Uploader
	invalidator store.Invalidator
	feed        *feed.Generator
	templator   *page.Templator
	prefix      string
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return New(
		do.MustInvoke[*store.FileUploader](i),
		do.MustInvoke[[]store.Uploader](i),
		do.MustInvoke[store.Invalidator](i),
		do.MustInvoke[*feed.Generator](i),
		do.MustInvoke[*page.Templator](i),
		do.MustInvokeNamed[string](i, "prefix"),
	), nil
}

// New builds a Handler; mirrors and invalidator may be empty.
func New(local *store.FileUploader, mirrors []store.Uploader, invalidator store.Invalidator,
	feed *feed.Generator, templator *page.Templator, prefix string) *Handler {
	return &Handler{local, mirrors, invalidator, feed, templator, prefix}
}

// Save writes the image and its sidecar locally, then refreshes the gallery
// and mirrors everything. Only the local image write is fatal; later failures
// are joined into the returned error alongside a populated Output.
func (h *Handler) Save(ctx context.Context, input Input) (Output, error) {
	if input.Image == nil {
		return Output{}, errors.New("no image to save")
	}
	input.Time = lo.Ternary(input.Time.IsZero(), time.Now(), input.Time)

	name := store.FileName(input.Time)
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("name", name)
	log.Info("saving image")

	var buf bytes.Buffer
	if err := png.Encode(&buf, input.Image); err != nil {
		return Output{}, fmt.Errorf("failed to encode png: %w", err)
	}

	metadata := input.toMetadata()
	img := store.UploadParams{
		Name:        name,
		Data:        buf.Bytes(),
		ContentType: "image/png",
		Metadata:    metadata,
	}
	if err := h.local.Upload(ctx, img); err != nil {
		return Output{}, err
	}
	out := Output{Name: name, Path: h.local.Path(name)}

	var errs []error
	uploads := []store.UploadParams{img}

	sidecar, err := input.toEntry(name).Marshal()
	if err == nil {
		u := store.UploadParams{
			Name:        feed.SidecarName(name),
			Data:        sidecar,
			ContentType: "application/yaml",
			Metadata:    metadata,
		}
		if err = h.local.Upload(ctx, u); err == nil {
			uploads = append(uploads, u)
		}
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("sidecar: %w", err))
	}

	gallery, err := h.gallery(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("gallery: %w", err))
	}
	uploads = append(uploads, gallery...)

	if err := h.mirror(ctx, uploads); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		log.Warn("image saved with errors", "error", err)
		return out, err
	}
	return out, nil
}

func (h *Handler) gallery(ctx context.Context) ([]store.UploadParams, error) {
	entries, err := h.feed.Entries(ctx)
	if err != nil {
		return nil, err
	}
	rss, err := h.feed.Generate(ctx, entries)
	if err != nil {
		return nil, err
	}
	html, err := h.templator.Template(ctx, page.Params{Title: h.feed.Title, Entries: entries})
	if err != nil {
		return nil, err
	}

	uploads := []store.UploadParams{
		{Name: "feed.xml", Data: rss, ContentType: "application/rss+xml", Overwrite: true},
		{Name: "index.html", Data: html, ContentType: "text/html", Overwrite: true},
	}
	for _, u := range uploads {
		if err := h.local.Upload(ctx, u); err != nil {
			return nil, err
		}
	}
	return uploads, nil
}

func (h *Handler) mirror(ctx context.Context, uploads []store.UploadParams) error {
	if len(h.mirrors) == 0 {
		return nil
	}

	var errs []error
	for _, m := range h.mirrors {
		for _, u := range uploads {
			if err := m.Upload(ctx, u); err != nil {
				errs = append(errs, fmt.Errorf("mirror %s: %w", u.Name, err))
			}
		}
	}

	if h.invalidator != nil {
		paths := lo.Map(uploads, func(u store.UploadParams, _ int) string {
			return "/" + path.Join(h.prefix, u.Name)
		})
		if err := h.invalidator.Invalidate(ctx, paths); err != nil {
			errs = append(errs, fmt.Errorf("invalidate: %w", err))
		}
	}
	return errors.Join(errs...)
}
