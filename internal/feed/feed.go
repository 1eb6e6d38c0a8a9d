package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dmorgan81/text2img/internal/log"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const sidecarExt = ".yaml"

// Entry is the metadata sidecar written next to every saved image.
type Entry struct {
	File      string    `yaml:"file"`
	Prompt    string    `yaml:"prompt"`
	Width     int       `yaml:"width"`
	Height    int       `yaml:"height"`
	Steps     int       `yaml:"num_inference_steps"`
	Guidance  float64   `yaml:"guidance_scale"`
	Format    string    `yaml:"format"`
	CreatedAt time.Time `yaml:"created_at"`
}

// SidecarName returns the sidecar name for an image file name.
func SidecarName(image string) string {
	return image[:len(image)-len(filepath.Ext(image))] + sidecarExt
}

func (e Entry) Marshal() ([]byte, error) {
	return yaml.Marshal(e)
}

type Generator struct {
	Dir   string
	Title string
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{
		Dir:   do.MustInvokeNamed[string](i, "output_dir"),
		Title: do.MustInvokeNamed[string](i, "gallery_title"),
	}, nil
}

// Entries reads every sidecar in the output directory, newest first.
func (g *Generator) Entries(ctx context.Context) ([]Entry, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed").With("dir", g.Dir)

	paths, err := filepath.Glob(filepath.Join(g.Dir, "*"+sidecarExt))
	if err != nil {
		return nil, err
	}
	log.Debug("reading sidecars", "count", len(paths))

	entries := make([]Entry, len(paths))
	group, ctx := errgroup.WithContext(ctx)
	for idx, path := range paths {
		idx, path := idx, path
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := yaml.Unmarshal(data, &entries[idx]); err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	entries = lo.Filter(entries, func(e Entry, _ int) bool {
		return e.File != ""
	})
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].CreatedAt.After(entries[b].CreatedAt)
	})
	return entries, nil
}

func (g *Generator) Generate(ctx context.Context, entries []Entry) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")
	log.Info("generating rss feed", "entries", len(entries))

	feed := feeds.Feed{
		Title:       g.Title,
		Description: "Images generated from text prompts",
		Link:        &feeds.Link{Href: "index.html"},
		Updated:     time.Now(),
	}
	for _, e := range entries {
		feed.Add(&feeds.Item{
			Title:       e.Prompt,
			Description: fmt.Sprintf("%dx%d, %d steps, guidance %g", e.Width, e.Height, e.Steps, e.Guidance),
			Link:        &feeds.Link{Href: e.File},
			Id:          e.File,
			Created:     e.CreatedAt,
			Updated:     e.CreatedAt,
		})
	}

	rss, err := feed.ToRss()
	return []byte(rss), err
}
