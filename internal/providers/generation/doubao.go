package generation

import (
	"context"
	"time"
)

// doubaoProvider simulates ByteDance Doubao generation endpoints.
type doubaoProvider struct {
	latency time.Duration
}

func (p *doubaoProvider) Name() string { return ProviderDoubao }

func (p *doubaoProvider) GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error) {
	if err := simulate(ctx, p.latency); err != nil {
		return nil, err
	}
	out := make([]Image, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		s := seed(ProviderDoubao, req.Prompt, req.NegativePrompt, itoa(i))
		out = append(out, Image{URL: imageURL(s, req.Width, req.Height)})
	}
	return out, nil
}

func (p *doubaoProvider) GenerateModel(ctx context.Context, req ModelRequest) (*Model3D, error) {
	if err := simulate(ctx, p.latency); err != nil {
		return nil, err
	}
	s := seed(ProviderDoubao, req.ImageURL, req.Quality, req.Format)
	return &Model3D{URL: modelURL(s, req.Format)}, nil
}
