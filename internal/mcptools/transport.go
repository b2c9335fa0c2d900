package mcptools

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const maxRequestSize = 1024 * 1024 // 1MB max request size

// ServeStdio serves the tools on stdin/stdout until ctx ends or the client
// disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	log.Info().Msg("starting MCP server on stdio")
	return server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPOptions configures the HTTP SSE transport.
type HTTPOptions struct {
	Path   string
	Bearer string
}

// NewHTTPHandler mounts the SSE transport at opts.Path, the streamable HTTP
// transport at opts.Path + "/stream" and an unauthenticated /healthz.
func NewHTTPHandler(server *mcp.Server, opts HTTPOptions) http.Handler {
	getServer := func(*http.Request) *mcp.Server { return server }

	sse := bearerAuth(opts.Bearer, mcp.NewSSEHandler(getServer))
	stream := bearerAuth(opts.Bearer, mcp.NewStreamableHTTPHandler(getServer, nil))

	path := opts.Path
	if path == "" {
		path = "/mcp/sse"
	}

	mux := http.NewServeMux()
	mux.Handle(path, requestSizeLimitMiddleware(sse))
	mux.Handle(strings.TrimSuffix(path, "/")+"/stream", requestSizeLimitMiddleware(stream))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// bearerAuth rejects requests without the expected token. An empty token
// disables the check.
func bearerAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			log.Warn().Str("remote", r.RemoteAddr).Msg("invalid bearer token")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestSizeLimitMiddleware limits the size of incoming requests
func requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
		next.ServeHTTP(w, r)
	})
}
