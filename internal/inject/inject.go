package inject

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	appconfig "github.com/dmorgan81/text2img/internal/config"
	"github.com/dmorgan81/text2img/internal/feed"
	"github.com/dmorgan81/text2img/internal/handler"
	"github.com/dmorgan81/text2img/internal/image"
	"github.com/dmorgan81/text2img/internal/log"
	"github.com/dmorgan81/text2img/internal/page"
	"github.com/dmorgan81/text2img/internal/param"
	"github.com/dmorgan81/text2img/internal/prompt"
	"github.com/dmorgan81/text2img/internal/store"
	"github.com/dmorgan81/text2img/internal/ui"
	"github.com/samber/do"
)

// Setup registers every service lazily; AWS clients are only built when S3,
// CloudFront or an SSM token parameter is configured.
func Setup(ctx context.Context, cfg *appconfig.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[context.Context](injector, ctx)
	do.ProvideValue[*appconfig.Config](injector, cfg)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	do.Provide[*param.ParameterStoreFetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[*param.Source](injector, param.NewSource)
	do.ProvideNamed[string](injector, "token", func(i *do.Injector) (string, error) {
		return do.MustInvoke[*param.Source](i).Value(ctx, cfg.Token, cfg.TokenParam)
	})
	do.ProvideNamed[[]string](injector, "prompts", func(i *do.Injector) ([]string, error) {
		return do.MustInvoke[*param.Source](i).Values(ctx, cfg.Prompts, cfg.PromptsParam)
	})
	do.ProvideNamedValue[string](injector, "endpoint", cfg.Endpoint)
	do.ProvideNamedValue[string](injector, "output_dir", cfg.OutputDir)
	do.ProvideNamedValue[string](injector, "gallery_title", cfg.Gallery.Title)
	do.ProvideNamedValue[string](injector, "bucket", cfg.S3.Bucket)
	do.ProvideNamedValue[string](injector, "prefix", cfg.S3.Prefix)
	do.ProvideNamedValue[string](injector, "distribution", cfg.CloudFront.Distribution)

	do.Provide[image.Generator](injector, image.NewHuggingFaceGenerator)
	do.Provide[*store.FileUploader](injector, store.NewFileUploader)
	do.Provide[*store.S3Uploader](injector, store.NewS3Uploader)
	do.Provide[[]store.Uploader](injector, func(i *do.Injector) ([]store.Uploader, error) {
		if cfg.S3.Bucket == "" {
			return nil, nil
		}
		return []store.Uploader{do.MustInvoke[*store.S3Uploader](i)}, nil
	})
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if cfg.S3.Bucket == "" || cfg.CloudFront.Distribution == "" {
			return nil, nil
		}
		return store.NewCloudFrontInvalidator(i)
	})
	do.Provide[*feed.Generator](injector, feed.NewGenerator)
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
	do.Provide[*handler.Handler](injector, handler.NewHandler)

	do.Provide[ui.Options](injector, func(i *do.Injector) (ui.Options, error) {
		sizes, err := cfg.ParsedSizes()
		if err != nil {
			return ui.Options{}, err
		}
		def, err := image.ParseSize(cfg.DefaultSize)
		if err != nil {
			return ui.Options{}, err
		}
		return ui.Options{
			Sizes:         sizes,
			DefaultSize:   def,
			Steps:         cfg.Steps,
			Guidance:      cfg.Guidance,
			DisplayWidth:  cfg.DisplayWidth,
			DisplayHeight: cfg.DisplayHeight,
		}, nil
	})
	do.Provide[*ui.App](injector, ui.NewApp)

	return injector
}
