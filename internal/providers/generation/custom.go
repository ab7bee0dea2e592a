package generation

import (
	"context"
	"time"
)

// customProvider serves self-hosted model endpoints and doubles as the
// fallback for provider tags the registry does not recognize.
type customProvider struct {
	latency time.Duration
}

func (p *customProvider) Name() string { return ProviderCustom }

func (p *customProvider) GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error) {
	if err := simulate(ctx, p.latency); err != nil {
		return nil, err
	}
	out := make([]Image, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		s := seed(ProviderCustom, req.APIURL, req.Prompt, itoa(i))
		out = append(out, Image{URL: imageURL(s, req.Width, req.Height)})
	}
	return out, nil
}

func (p *customProvider) GenerateModel(ctx context.Context, req ModelRequest) (*Model3D, error) {
	if err := simulate(ctx, p.latency); err != nil {
		return nil, err
	}
	s := seed(ProviderCustom, req.APIURL, req.ImageURL, req.Quality, req.Format)
	return &Model3D{URL: modelURL(s, req.Format)}, nil
}
