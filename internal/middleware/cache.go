package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ngo-data-hub/internal/config"
)

// captureWriter tees the response body into buf, up to limit bytes.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size < cw.limit {
		n := int64(len(b))
		if cw.limit > 0 && cw.size+n > cw.limit {
			n = cw.limit - cw.size
		}
		cw.buf.Write(b[:n])
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// replayHeaders are the only response headers stored with a cached body.
// Everything else, Set-Cookie and X-Request-Id included, belongs to the
// request that filled the cache.
var replayHeaders = []string{echo.HeaderContentType, echo.HeaderContentEncoding, "Content-Language"}

func representationHeaders(src http.Header) http.Header {
	out := make(http.Header, len(replayHeaders))
	for _, k := range replayHeaders {
		if vals := src.Values(k); len(vals) > 0 {
			out[textproto.CanonicalMIMEHeaderKey(k)] = append([]string(nil), vals...)
		}
	}
	return out
}

// ResponseCache keeps successful GET responses of the record routes in
// Redis, one key namespace per table.  Any successful write to a table
// drops that table's namespace.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

// NewResponseCache returns nil when caching is disabled or Redis is not
// available; a nil cache passes every request through.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) namespace(table string) string {
	return rc.cfg.Prefix + ":" + table + ":"
}

// key hashes the route pattern, the concrete path and the query string.
func (rc *ResponseCache) key(table string, c echo.Context) string {
	r := c.Request()
	tail := strings.Join([]string{c.Path(), r.URL.Path, r.URL.RawQuery}, "|")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s%x", rc.namespace(table), sum[:])
}

// encodePayload packs [4 bytes status][4 bytes headerLen][headerJSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// Read serves cached responses for table and stores fresh 200 responses.
func (rc *ResponseCache) Read(table string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rc == nil {
			return next
		}
		return func(c echo.Context) error {
			if !rc.cfg.Methods[c.Request().Method] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := rc.key(table, c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range representationHeaders(hdr) {
						c.Response().Header()[k] = vals
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (cw.limit > 0 && cw.size > cw.limit) {
				return nil
			}

			payload, err := encodePayload(cw.status, representationHeaders(c.Response().Header()), cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rc.rdb.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				log.Warn().Err(err).Str("table", table).Msg("cache: store failed")
			}
			return nil
		}
	}
}

// Invalidate drops every cached response for table after a successful
// write.
func (rc *ResponseCache) Invalidate(table string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rc == nil {
			return next
		}
		return func(c echo.Context) error {
			err := next(c)
			if err == nil && c.Response().Status < 300 {
				rc.flush(context.WithoutCancel(c.Request().Context()), table)
			}
			return err
		}
	}
}

func (rc *ResponseCache) flush(ctx context.Context, table string) {
	iter := rc.rdb.Scan(ctx, 0, rc.namespace(table)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("cache: scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Str("table", table).Msg("cache: invalidate failed")
	}
}
