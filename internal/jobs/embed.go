package jobs

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/aiinpocket/HomePage/internal/storage"
	"github.com/aiinpocket/HomePage/pkg/zip"
)

// EmbedAssets replaces {{ key }} placeholders that name an asset with a
// data URI, which keeps the stored document self-contained for previews.
func EmbedAssets(document string, assets map[string][]byte) string {
	if len(assets) == 0 {
		return document
	}
	return zip.ReplacePlaceholders(document, func(key string) (string, bool) {
		data, ok := assets[key]
		if !ok {
			return "", false
		}
		return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), true
	})
}

func loadAssets(ctx context.Context, store AssetStore, jobID string, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("asset store is not configured")
	}
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := store.Read(ctx, storage.AssetKey(jobID, key))
		if err != nil {
			return nil, fmt.Errorf("load asset %q: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}
