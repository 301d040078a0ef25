package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/smart-parking/internal/config"
)

// ResponseCache caches full HTTP responses in Redis.  Only the parking-state
// route is cached, so keys are derived from method+route alone and writers
// (reservation handler, telemetry consumer) invalidate the route explicitly
// instead of waiting for the TTL.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
}

// NewResponseCache constructs a ResponseCache.  rdb may be nil, in which
// case the middleware is a pass-through and Invalidate is a no-op.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
    return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) enabled() bool {
    return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

// key builds the Redis key for one cached route.
func (rc *ResponseCache) key(method, route string) string {
    sum := sha1.Sum([]byte(method + ":" + route))
    return fmt.Sprintf("%s:%x", rc.cfg.Prefix, sum[:])
}

// genKey holds the route's generation counter, bumped on every invalidation.
func genKey(key string) string { return key + ":gen" }

// Invalidate drops the cached response for a route and bumps its generation
// counter.  Called after every store write so viewers polling over HTTP
// never read state older than the last confirmed change.  The counter lets
// the middleware detect a write that landed while a handler was still
// producing its (now stale) response.
func (rc *ResponseCache) Invalidate(ctx context.Context, method, route string) {
    if !rc.enabled() {
        return
    }
    key := rc.key(method, route)
    pipe := rc.rdb.Pipeline()
    pipe.Del(ctx, key)
    pipe.Incr(ctx, genKey(key))
    _, _ = pipe.Exec(ctx)
}

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size < cw.limit {
        if remain := cw.limit - cw.size; cw.limit <= 0 || int64(len(b)) <= remain {
            cw.buf.Write(b)
        } else if remain > 0 {
            cw.buf.Write(b[:remain])
        }
        cw.size += int64(len(b))
    }
    return cw.ResponseWriter.Write(b)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 4+4+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
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

// Middleware serves cached responses and stores 200 responses on miss.
// Headers and body are replayed verbatim so clients see identical formatting.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }

            ctx := c.Request().Context()
            key := rc.key(c.Request().Method, c.Path())

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            // Remember the route generation before the handler runs so a
            // write landing mid-request can be detected below.
            gen, _ := rc.rdb.Get(ctx, genKey(key)).Result()

            cw := &captureWriter{
                ResponseWriter: c.Response().Writer,
                status:         http.StatusOK,
                limit:          int64(rc.cfg.MaxBodyBytes),
            }
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }

            if cw.status == http.StatusOK {
                hdr := make(http.Header, len(c.Response().Header()))
                for k, vals := range c.Response().Header() {
                    hdr[k] = append([]string(nil), vals...)
                }
                if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                    // Only store if no invalidation ran while the handler
                    // was producing the response; otherwise this body was
                    // read before the write and would resurrect stale state.
                    bg := context.Background()
                    if cur, _ := rc.rdb.Get(bg, genKey(key)).Result(); cur == gen {
                        _ = rc.rdb.SetEx(bg, key, payload, rc.cfg.TTL).Err()
                    }
                }
            }
            return nil
        }
    }
}
