package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

type recordingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cacheKey scopes entries to the authenticated user, since permissions can
// shape a response.
func cacheKey(c *gin.Context) string {
	return c.GetString(UserKey) + " " + c.Request.URL.RequestURI()
}

// Cache serves repeated GET requests from store. Entries are kept per user; the
// store is flushed whenever the workbook changes. A request sent with
// "Cache-Control: no-cache" bypasses the stored entry and refreshes it.
func Cache(store *cache.Cache, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := cacheKey(c)
		bypass := strings.Contains(c.GetHeader("Cache-Control"), "no-cache")
		if v, found := store.Get(key); found && !bypass {
			hit := v.(cachedResponse)
			c.Header("X-Cache", "HIT")
			c.Data(hit.status, hit.contentType, hit.body)
			c.Abort()
			return
		}

		rw := &recordingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw
		c.Header("X-Cache", "MISS")

		c.Next()

		if status := rw.Status(); status == http.StatusOK {
			store.Set(key, cachedResponse{
				status:      status,
				contentType: rw.Header().Get("Content-Type"),
				body:        rw.body.Bytes(),
			}, duration)
		}
	}
}
