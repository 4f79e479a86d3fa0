package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-drive-api/pkg/middleware/requestid"
)

const responseMetaKey = "drive_response_meta"

// Response sources reported under meta.source.
const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)

// ResponseMeta gives every request a meta map that handlers may fill and pass
// to response.JSON. The request id is always included when known.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta["requestId"] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
	}
}

// MarkCached records whether the payload was served from the summary cache.
func MarkCached(c *gin.Context, cached bool) {
	source := SourceDatabase
	if cached {
		source = SourceCache
	}
	Meta(c)["source"] = source
}

// Meta returns the request's meta map, creating it when ResponseMeta is not
// installed.
func Meta(c *gin.Context) map[string]interface{} {
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
