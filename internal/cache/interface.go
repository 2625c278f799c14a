package cache

import (
	"fmt"
	"time"

	"github.com/mlawther/newsgrid/internal/models"
)

// Cache defines the interface for cache backends
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	SetWithTTL(key string, value interface{}, ttl time.Duration)
	Delete(key string)
	Clear()
}

// ArticlesKey builds a cache key for an article listing, so that
// distinct filter combinations never collide.
func ArticlesKey(params models.FilterParams) string {
	return fmt.Sprintf("articles:cat=%s:src=%s:sort=%s:limit=%d:offset=%d",
		params.Category, params.Source, params.Sort, params.Limit, params.Offset)
}
