package image

import (
	"bytes"
	"context"
	"encoding/json"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/dmorgan81/text2img/internal/log"
	_ "github.com/kolesa-team/go-webp/webp"
	"github.com/samber/do"
)

type HuggingFaceGenerator struct {
	Client   *http.Client
	Endpoint string
	Token    string
}

func NewHuggingFaceGenerator(i *do.Injector) (Generator, error) {
	return &HuggingFaceGenerator{
		Client:   do.MustInvoke[*http.Client](i),
		Endpoint: do.MustInvokeNamed[string](i, "endpoint"),
		Token:    do.MustInvokeNamed[string](i, "token"),
	}, nil
}

func (g *HuggingFaceGenerator) Generate(ctx context.Context, params Params) (*Generated, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("huggingface").With(
		"prompt", params.Prompt,
		"width", params.Width,
		"height", params.Height,
	)
	if err := params.Validate(); err != nil {
		return nil, err
	}
	log.Info("generating image", "endpoint", g.Endpoint)

	body, err := json.Marshal(params.payload())
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.Token)

	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("request rejected", "status", resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	img, format, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	log.Info("received image", "format", format, "bytes", len(data))

	return &Generated{Data: data, Format: format, Image: img}, nil
}
