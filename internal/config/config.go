package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dmorgan81/text2img/internal/image"
	"github.com/jinzhu/configor"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const DefaultEndpoint = "https://api-inference.huggingface.co/models/ZB-Tech/Text-to-Image"

type S3Configuration struct {
	Bucket string `yaml:"bucket" env:"TEXT2IMG_S3_BUCKET"`
	Prefix string `yaml:"prefix" env:"TEXT2IMG_S3_PREFIX"`
}

type CloudFrontConfiguration struct {
	Distribution string `yaml:"distribution" env:"TEXT2IMG_CLOUDFRONT_DISTRIBUTION"`
}

type GalleryConfiguration struct {
	Title string `yaml:"title" env:"TEXT2IMG_GALLERY_TITLE" default:"Text to Image Gallery"`
}

type Config struct {
	Endpoint   string `yaml:"endpoint" env:"TEXT2IMG_ENDPOINT"`
	Token      string `yaml:"token" env:"HF_API_TOKEN"`
	TokenParam string `yaml:"token_param" env:"HF_API_TOKEN_PARAM"`

	Steps       int      `yaml:"steps" env:"TEXT2IMG_STEPS" default:"50"`
	Guidance    float64  `yaml:"guidance" env:"TEXT2IMG_GUIDANCE" default:"7.5"`
	Sizes       []string `yaml:"sizes"`
	DefaultSize string   `yaml:"default_size" env:"TEXT2IMG_DEFAULT_SIZE" default:"512x512"`

	DisplayWidth  int `yaml:"display_width" env:"TEXT2IMG_DISPLAY_WIDTH" default:"800"`
	DisplayHeight int `yaml:"display_height" env:"TEXT2IMG_DISPLAY_HEIGHT" default:"600"`

	OutputDir    string   `yaml:"output_dir" env:"TEXT2IMG_OUTPUT_DIR" default:"generated_images"`
	Prompts      []string `yaml:"prompts"`
	PromptsParam string   `yaml:"prompts_param" env:"TEXT2IMG_PROMPTS_PARAM"`

	LogFile  string `yaml:"log_file" env:"TEXT2IMG_LOG_FILE"`
	LogLevel string `yaml:"log_level" env:"TEXT2IMG_LOG_LEVEL" default:"info"`

	S3         S3Configuration         `yaml:"s3"`
	CloudFront CloudFrontConfiguration `yaml:"cloudfront"`
	Gallery    GalleryConfiguration    `yaml:"gallery"`
}

var defaultSizes = []string{"256x256", "512x512", "768x768"}

var defaultPrompts = []string{
	"a red bicycle leaning against a brick wall",
	"a lighthouse on a cliff at sunset, oil painting",
	"a kitten astronaut floating in space",
	"a misty pine forest at dawn, photograph",
}

// Load reads an optional .env file and then the given yaml files, with
// environment variables taking precedence.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	loader := configor.New(&configor.Config{ENVPrefix: "TEXT2IMG", Silent: true})
	if err := loader.Load(cfg, files...); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Endpoint = lo.Ternary(cfg.Endpoint != "", cfg.Endpoint, DefaultEndpoint)
	if len(cfg.Sizes) == 0 {
		cfg.Sizes = defaultSizes
	}
	if len(cfg.Prompts) == 0 {
		cfg.Prompts = defaultPrompts
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every numeric default is usable and that the
// default size is one of the offered sizes.
func (c *Config) Validate() error {
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	if c.Guidance <= 0 {
		return fmt.Errorf("guidance must be positive, got %v", c.Guidance)
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		return fmt.Errorf("display area must be positive, got %dx%d", c.DisplayWidth, c.DisplayHeight)
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if _, err := c.ParsedSizes(); err != nil {
		return err
	}
	if !lo.Contains(c.Sizes, c.DefaultSize) {
		return fmt.Errorf("default size %q is not one of %v", c.DefaultSize, c.Sizes)
	}
	return nil
}

func (c *Config) ParsedSizes() ([]image.Size, error) {
	sizes := make([]image.Size, 0, len(c.Sizes))
	for _, s := range c.Sizes {
		size, err := image.ParseSize(s)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}
