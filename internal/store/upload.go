package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmorgan81/text2img/internal/log"
	"github.com/samber/do"
)

const timestampLayout = "20060102_150405"

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
	// Overwrite allows replacing an existing object. Saved images never set it.
	Overwrite bool
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// FileName derives the saved image name from t at second resolution.
func FileName(t time.Time) string {
	return "image_" + t.Format(timestampLayout) + ".png"
}

type FileUploader struct {
	Dir string
}

func NewFileUploader(i *do.Injector) (*FileUploader, error) {
	return &FileUploader{Dir: do.MustInvokeNamed[string](i, "output_dir")}, nil
}

func (u *FileUploader) Path(name string) string {
	return filepath.Join(u.Dir, name)
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) error {
	path := u.Path(params.Name)
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Info("writing", "file", path)

	if err := os.MkdirAll(u.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", u.Dir, err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !params.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(params.Data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
