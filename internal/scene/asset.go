package scene

import (
	"context"
	"fmt"

	"github.com/mitchellh/copystructure"
)

// Asset is a non-spatial clone carrying a data payload.
type Asset struct {
	name string
	Data map[string]any
}

// Name returns the asset name.
func (a *Asset) Name() string { return a.name }

// AssetTemplate produces Assets with a private copy of its payload.
type AssetTemplate struct {
	name string
	data map[string]any
}

// NewAssetTemplate creates an asset template.
func NewAssetTemplate(name string, data map[string]any) *AssetTemplate {
	return &AssetTemplate{name: name, data: data}
}

// Name returns the template name.
func (t *AssetTemplate) Name() string { return t.name }

// Instantiate deep-copies the payload into a new Asset.
func (t *AssetTemplate) Instantiate(ctx context.Context) (Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	asset := &Asset{name: t.name + cloneSuffix}
	if t.data == nil {
		return asset, nil
	}
	copied, err := copystructure.Copy(t.data)
	if err != nil {
		return nil, fmt.Errorf("asset %s: copy payload: %w", t.name, err)
	}
	data, ok := copied.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("asset %s: unexpected payload copy %T", t.name, copied)
	}
	asset.Data = data
	return asset, nil
}
