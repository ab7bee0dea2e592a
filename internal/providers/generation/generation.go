// Package generation defines the narrow capability interface for external
// image/3D generation vendors and a registry that routes a model profile's
// provider tag to an adapter. All adapters are structurally interchangeable:
// each turns a normalized request into either N image URLs or one model URL.
//
// The upstream calls themselves are simulated: each adapter waits a
// configurable latency and fabricates deterministic URLs. The interface is
// shaped so a real HTTP client drops in behind the same contract.
package generation

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// itoa is shorthand used when mixing loop indexes into seed material.
func itoa(i int) string { return strconv.Itoa(i) }

// Provider names understood by the registry. Anything else falls back to
// the custom adapter.
const (
	ProviderHunyuan = "hunyuan"
	ProviderDoubao  = "doubao"
	ProviderCustom  = "custom"
)

// ImageRequest is the normalized request passed to any image adapter.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Count          int
	APIURL         string
	AccessKey      string
	SecretKey      string
}

// ModelRequest is the normalized request passed to any 3D-model adapter.
type ModelRequest struct {
	ImageURL  string
	Format    string
	Quality   string
	APIURL    string
	AccessKey string
	SecretKey string
}

// Image is one generated image artifact.
type Image struct {
	URL string
}

// Model3D is one generated 3D-model artifact.
type Model3D struct {
	URL string
}

// Provider is the contract implemented by all generation adapters.
type Provider interface {
	// Name returns the provider tag this adapter serves.
	Name() string
	// GenerateImages produces req.Count image URLs.
	GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error)
	// GenerateModel produces a single 3D-model URL.
	GenerateModel(ctx context.Context, req ModelRequest) (*Model3D, error)
}

// Registry routes provider tags to adapters, with the custom adapter as the
// fallback for unknown tags.
type Registry struct {
	providers map[string]Provider
	fallback  Provider
}

// NewRegistry builds a registry with the hunyuan, doubao and custom
// adapters, each simulating the given upstream latency. Pass zero latency
// in tests.
func NewRegistry(latency time.Duration) *Registry {
	custom := &customProvider{latency: latency}
	r := &Registry{
		providers: map[string]Provider{
			ProviderHunyuan: &hunyuanProvider{latency: latency},
			ProviderDoubao:  &doubaoProvider{latency: latency},
			ProviderCustom:  custom,
		},
		fallback: custom,
	}
	return r
}

// Lookup returns the adapter for a provider tag, falling back to the
// custom adapter when the tag is unknown.
func (r *Registry) Lookup(name string) Provider {
	if p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return r.fallback
}

// simulate blocks for d or until the context is done.
func simulate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// seed derives a stable per-output seed from the request material, so the
// fabricated URLs are deterministic for a given prompt.
func seed(parts ...string) uint64 {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

// imageURL fabricates a placeholder image URL of the requested dimensions.
func imageURL(s uint64, width, height int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%d/%d/%d", s, width, height)
}

// modelURL fabricates a placeholder model URL with the requested extension.
func modelURL(s uint64, format string) string {
	ext := strings.ToLower(strings.TrimSpace(format))
	if ext == "" {
		ext = "glb"
	}
	return fmt.Sprintf("https://models.example.com/%d.%s", s, ext)
}
