package pipeline

import (
	"context"
	"errors"
	"strings"

	"adflow/internal/domain"
)

// StorePublisher hosts translated pages as static files in the object store.
type StorePublisher struct {
	Objects ObjectStore
}

// Publish writes the page to pages/<page>/<language>[/<variant>]/index.html.
func (p StorePublisher) Publish(ctx context.Context, t *domain.Translation) (string, error) {
	if p.Objects == nil {
		return "", errors.New("publish: no object store configured")
	}
	parts := []string{"pages", t.PageID, strings.ToLower(t.Language)}
	if t.Variant != "" {
		parts = append(parts, t.Variant)
	}
	key := strings.Join(parts, "/") + "/index.html"
	return p.Objects.Put(ctx, key, []byte(t.TranslatedContent), "text/html; charset=utf-8")
}
