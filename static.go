package brisa

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fasthttp"
)

// staticHotEntry is one cached file body in the hot in-memory cache.
type staticHotEntry struct {
	body    []byte
	gzip    []byte
	modTime time.Time
	etag    string
	size    int64
	cachedAt time.Time
}

// staticEngine serves a StaticFS mount: path safety, index and
// directory-listing resolution, conditional GET and single-range support,
// gzip compression, and a hot LRU cache of small files keyed by path with
// mtime-based invalidation and a TTL cap.
type staticEngine struct {
	fs  StaticFS
	hot *lru.Cache[string, staticHotEntry]
}

func newStaticEngine(fs StaticFS) *staticEngine {
	if len(fs.IndexNames) == 0 {
		fs.IndexNames = []string{"index.html"}
	}
	if fs.HotCacheMaxFileSize == 0 {
		fs.HotCacheMaxFileSize = 256 * 1024
	}
	if fs.HotCacheMaxBytes == 0 {
		fs.HotCacheMaxBytes = 32 * 1024 * 1024
	}
	if fs.HotCacheTTL == 0 {
		fs.HotCacheTTL = time.Minute
	}

	entries := int(fs.HotCacheMaxBytes / maxInt64(fs.HotCacheMaxFileSize, 1))
	if entries < 16 {
		entries = 16
	}
	cache, _ := lru.New[string, staticHotEntry](entries)

	return &staticEngine{fs: fs, hot: cache}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// staticMount pairs a URL prefix with the engine serving it. Static mounts
// are matched by prefix outside the trie: the segment trie has no
// catch-all wildcard and a static tree can be arbitrarily deep, so static
// mounts are matched directly by path prefix, ahead of route dispatch.
type staticMount struct {
	prefix string
	engine *staticEngine
}

// Static mounts a static-file engine at prefix, serving files rooted at
// fs.Root.
func (r *Router) Static(prefix string, fs StaticFS) {
	fs.Prefix = strings.TrimRight(joinPath(r.prefix, prefix), "/") + "/"
	engine := newStaticEngine(fs)
	r.core.staticMounts = append(r.core.staticMounts, &staticMount{prefix: fs.Prefix, engine: engine})
}

// matchStatic returns the static mount whose prefix is the longest match
// for path, if any.
func (c *routerCore) matchStatic(path string) *staticMount {
	var best *staticMount
	for _, m := range c.staticMounts {
		if strings.HasPrefix(path, m.prefix) || path+"/" == m.prefix {
			if best == nil || len(m.prefix) > len(best.prefix) {
				best = m
			}
		}
	}
	return best
}

// serve resolves and writes the response for one static-file request. It
// never returns an error: all failure modes write their own response
// instead of surfacing I/O errors through the handler chain.
func (e *staticEngine) serve(ctx *RequestCtx) {
	reqPath := string(ctx.Path())
	if e.fs.PathRewrite != nil {
		reqPath = string(e.fs.PathRewrite(ctx))
	} else {
		reqPath = strings.TrimPrefix(reqPath, strings.TrimRight(e.fs.Prefix, "/"))
	}

	if !e.fs.AllowHiddenFiles && containsHiddenSegment(reqPath) {
		e.notFound(ctx)
		return
	}

	cleanPath, ok := safeJoin(e.fs.Root, reqPath)
	if !ok {
		writeErrorBody(ctx.RequestCtx, NewError(KindForbidden, "invalid path"), false)
		return
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		e.notFound(ctx)
		return
	}

	if info.IsDir() {
		served := false
		for _, name := range e.fs.IndexNames {
			idxPath := filepath.Join(cleanPath, name)
			if idxInfo, err := os.Stat(idxPath); err == nil && !idxInfo.IsDir() {
				cleanPath, info = idxPath, idxInfo
				served = true
				break
			}
		}
		if !served {
			if e.fs.GenerateIndexPages {
				e.serveDirectoryListing(ctx, cleanPath, reqPath)
				return
			}
			writeErrorBody(ctx.RequestCtx, NewError(KindForbidden, "directory listing disabled"), false)
			return
		}
	}

	if e.fs.MaxFileSize > 0 && info.Size() > e.fs.MaxFileSize {
		e.notFound(ctx)
		return
	}

	e.serveFile(ctx, cleanPath, info)
}

func (e *staticEngine) notFound(ctx *RequestCtx) {
	if e.fs.PathNotFound != nil {
		_ = e.fs.PathNotFound(ctx)
		return
	}
	writeErrorBody(ctx.RequestCtx, NewError(KindNotFound, "not found"), false)
}

// containsHiddenSegment reports whether any path segment begins with a dot.
func containsHiddenSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}

// safeJoin resolves rel under root, rejecting traversal outside root and
// NUL bytes.
func safeJoin(root, rel string) (string, bool) {
	if strings.ContainsRune(rel, 0) {
		return "", false
	}
	cleaned := path.Clean("/" + rel)
	joined := filepath.Join(root, cleaned)

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	joinedAbs, err := filepath.Abs(joined)
	if err != nil {
		return "", false
	}
	if joinedAbs != rootAbs && !strings.HasPrefix(joinedAbs, rootAbs+string(filepath.Separator)) {
		return "", false
	}
	return joinedAbs, true
}

// serveFile writes the response for a resolved, existing, within-limit
// file: hot-cache lookup, ETag/conditional-GET, single-range, and gzip.
func (e *staticEngine) serveFile(ctx *RequestCtx, fullPath string, info os.FileInfo) {
	entry, err := e.load(fullPath, info)
	if err != nil {
		writeErrorBody(ctx.RequestCtx, Wrap(KindHandler, err, "reading file"), false)
		return
	}

	ctx.Response.Header.Set(fasthttp.HeaderETag, entry.etag)
	ctx.Response.Header.Set(fasthttp.HeaderLastModified, entry.modTime.UTC().Format(http.TimeFormat))
	if e.fs.CacheDuration > 0 {
		ctx.Response.Header.Set(fasthttp.HeaderCacheControl,
			fmt.Sprintf("public, max-age=%d", int(e.fs.CacheDuration.Seconds())))
	}

	if inm := string(ctx.Request.Header.Peek(fasthttp.HeaderIfNoneMatch)); inm != "" && inm == entry.etag {
		ctx.SetStatusCode(fasthttp.StatusNotModified)
		return
	}
	if ims := string(ctx.Request.Header.Peek(fasthttp.HeaderIfModifiedSince)); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !entry.modTime.After(t.Add(time.Second)) {
			ctx.SetStatusCode(fasthttp.StatusNotModified)
			return
		}
	}

	ctype := mime.TypeByExtension(filepath.Ext(fullPath))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	ctx.Response.Header.SetContentType(ctype)

	body := entry.body
	useGzip := e.fs.Compress && entry.gzip != nil && acceptsGzip(ctx) && isCompressible(ctype)
	if useGzip {
		body = entry.gzip
		ctx.Response.Header.Set(fasthttp.HeaderContentEncoding, "gzip")
	}

	if rng := string(ctx.Request.Header.Peek(fasthttp.HeaderRange)); rng != "" && !useGzip {
		e.serveRange(ctx, body, rng, ctype)
		return
	}

	ctx.Response.Header.Set(fasthttp.HeaderAcceptRanges, "bytes")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}

func acceptsGzip(ctx *RequestCtx) bool {
	return strings.Contains(string(ctx.Request.Header.Peek(fasthttp.HeaderAcceptEncoding)), "gzip")
}

// isCompressible reports whether ctype benefits from gzip; images, video,
// and archives are already compressed and are never re-compressed.
func isCompressible(ctype string) bool {
	switch {
	case strings.HasPrefix(ctype, "text/"):
		return true
	case strings.Contains(ctype, "json"), strings.Contains(ctype, "xml"),
		strings.Contains(ctype, "javascript"), strings.Contains(ctype, "font"):
		return true
	default:
		return false
	}
}

// serveRange implements a single-range request: a malformed or
// unsatisfiable range yields 416 with Content-Range: bytes */size.
func (e *staticEngine) serveRange(ctx *RequestCtx, body []byte, rangeHeader, ctype string) {
	size := int64(len(body))

	start, end, ok := parseByteRange(rangeHeader, size)
	if !ok {
		ctx.Response.Header.Set(fasthttp.HeaderContentRange, fmt.Sprintf("bytes */%d", size))
		ctx.SetStatusCode(fasthttp.StatusRequestedRangeNotSatisfiable)
		return
	}

	ctx.Response.Header.Set(fasthttp.HeaderAcceptRanges, "bytes")
	ctx.Response.Header.Set(fasthttp.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	ctx.SetStatusCode(fasthttp.StatusPartialContent)
	ctx.SetBody(body[start : end+1])
}

// parseByteRange parses a "bytes=a-b" header for a resource of the given
// size. Only a single range is supported.
func parseByteRange(header string, size int64) (start, end int64, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	if parts[0] == "" {
		// suffix range: bytes=-N
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}

	if parts[1] == "" {
		return start, size - 1, true
	}

	end, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}

// load returns the file body from the hot cache, or reads and, if eligible,
// caches it. A cache hit whose mtime no longer matches disk is treated as
// a miss.
func (e *staticEngine) load(fullPath string, info os.FileInfo) (staticHotEntry, error) {
	if cached, ok := e.hot.Get(fullPath); ok {
		if cached.modTime.Equal(info.ModTime()) && time.Since(cached.cachedAt) < e.fs.HotCacheTTL {
			return cached, nil
		}
		e.hot.Remove(fullPath)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return staticHotEntry{}, err
	}

	sum := md5.Sum(data)
	entry := staticHotEntry{
		body:     data,
		modTime:  info.ModTime(),
		etag:     `W/"` + hex.EncodeToString(sum[:]) + `"`,
		size:     info.Size(),
		cachedAt: time.Now(),
	}

	if e.fs.Compress && isCompressible(mime.TypeByExtension(filepath.Ext(fullPath))) {
		var buf bytes.Buffer
		level := e.fs.CompressLevel
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(&buf, level)
		if err == nil {
			if _, err := gw.Write(data); err == nil {
				if err := gw.Close(); err == nil {
					entry.gzip = buf.Bytes()
				}
			}
		}
	}

	if info.Size() <= e.fs.HotCacheMaxFileSize {
		e.hot.Add(fullPath, entry)
	}

	return entry, nil
}

// serveDirectoryListing writes an auto-generated HTML directory index.
func (e *staticEngine) serveDirectoryListing(ctx *RequestCtx, dirPath, reqPath string) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		writeErrorBody(ctx.RequestCtx, Wrap(KindHandler, err, "reading directory"), false)
		return
	}

	names := make([]string, 0, len(entries))
	for _, de := range entries {
		if !e.fs.AllowHiddenFiles && strings.HasPrefix(de.Name(), ".") {
			continue
		}
		name := de.Name()
		if de.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html><html><head><title>Index of %s</title></head><body>", html.EscapeString(reqPath))
	fmt.Fprintf(&buf, "<h1>Index of %s</h1><ul>", html.EscapeString(reqPath))
	if reqPath != "/" {
		buf.WriteString(`<li><a href="../">../</a></li>`)
	}
	for _, name := range names {
		href := html.EscapeString(name)
		fmt.Fprintf(&buf, `<li><a href="%s">%s</a></li>`, href, href)
	}
	buf.WriteString("</ul></body></html>")

	ctx.Response.Header.SetContentType("text/html; charset=utf-8")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(buf.Bytes())
}
