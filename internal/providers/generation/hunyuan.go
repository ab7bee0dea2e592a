package generation

import (
	"context"
	"time"
)

// hunyuanProvider simulates Tencent Hunyuan generation endpoints.
type hunyuanProvider struct {
	latency time.Duration
}

func (p *hunyuanProvider) Name() string { return ProviderHunyuan }

// GenerateImages fabricates req.Count image URLs after the simulated
// upstream latency.
func (p *hunyuanProvider) GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error) {
	if err := simulate(ctx, p.latency); err != nil {
		return nil, err
	}
	out := make([]Image, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		s := seed(ProviderHunyuan, req.Prompt, req.NegativePrompt, itoa(i))
		out = append(out, Image{URL: imageURL(s, req.Width, req.Height)})
	}
	return out, nil
}

// GenerateModel fabricates a single model URL after the simulated latency.
func (p *hunyuanProvider) GenerateModel(ctx context.Context, req ModelRequest) (*Model3D, error) {
	if err := simulate(ctx, p.latency); err != nil {
		return nil, err
	}
	s := seed(ProviderHunyuan, req.ImageURL, req.Quality, req.Format)
	return &Model3D{URL: modelURL(s, req.Format)}, nil
}
