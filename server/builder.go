package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docbridge/docbridge"
	"github.com/docbridge/docbridge/internal/config"
	"github.com/docbridge/docbridge/logging"
)

// Option customizes the configuration and wiring of the host server.
type Option func(*builder)

// WithPlugin registers a plugin factory with the manager.
func WithPlugin(f docbridge.Factory) Option {
	return func(b *builder) {
		b.factories = append(b.factories, f)
	}
}

// WithHTTPHandler mounts an additional handler at the given path prefix.
func WithHTTPHandler(prefix string, h http.Handler) Option {
	return func(b *builder) {
		b.handlers = append(b.handlers, handler{prefix: prefix, handler: h})
	}
}

// WithHost overrides the configured bind host.
func WithHost(host string) Option {
	return func(b *builder) {
		b.host = host
	}
}

// WithPort overrides the configured bind port.
func WithPort(port int) Option {
	return func(b *builder) {
		b.port = port
	}
}

// WithBaseContext sets the context propagated to plugin Init calls and
// request handlers. Cancellation stops background plugin work.
func WithBaseContext(ctx context.Context) Option {
	return func(b *builder) {
		b.baseContext = ctx
	}
}

// WithConfigWatcher watches the given YAML file and reloads plugins whose
// config subtree changed.
func WithConfigWatcher(path string) Option {
	return func(b *builder) {
		b.watchPath = path
	}
}

type handler struct {
	prefix  string
	handler http.Handler
}

type builder struct {
	baseContext context.Context
	host        string
	port        int
	watchPath   string

	factories []docbridge.Factory
	handlers  []handler
}

// New builds a host server. Plugin config keys must be registered before this
// is called so defaults resolve; plugin discovery and validation run here,
// initialization runs in Start.
func New(opts ...Option) *Server {
	config.EnsureDefaultsLoaded(docbridge.Config)

	b := &builder{
		host: docbridge.ConfigString("web.host"),
		port: docbridge.ConfigInt("web.port"),
	}
	if docbridge.ConfigExists("plugins.configFile") {
		b.watchPath = docbridge.ConfigString("plugins.configFile")
	}
	for _, opt := range opts {
		opt(b)
	}
	return b.build()
}

func (b *builder) build() *Server {
	if b.baseContext == nil {
		b.baseContext = context.Background()
	}
	ctx := logging.EnsureLogger(b.baseContext)
	log := logging.FromContext(ctx)

	for _, warning := range config.ValidateConfigKeys(docbridge.Config) {
		log.Warnw("unrecognized config key", "detail", warning.String())
	}

	m := docbridge.NewManager(docbridge.WithAppContext(docbridge.NewAppContext(ctx)))
	for _, f := range b.factories {
		m.Register(f)
	}
	m.Discover()

	router := chi.NewRouter()
	router.Use(scopeLogger(log))

	s := &Server{
		host:        b.host,
		port:        b.port,
		baseContext: ctx,
		manager:     m,
		router:      router,
		watchPath:   b.watchPath,
	}

	// Plugin routes dispatch through the registry on every request, so a
	// reload swaps handlers along with the instance, and the reload endpoint
	// itself keeps working while a plugin is down.
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", wrapJSONHandler(s.handleHealth))
		r.Get("/plugins", wrapJSONHandler(s.handlePlugins))
		r.Get("/menu", wrapJSONHandler(s.handleMenu))
		r.Post("/retry-failed", wrapJSONHandler(s.handleRetryFailed))
		r.Post("/test-connections", wrapJSONHandler(s.handleTestConnections))
		r.Route("/plugins/{pluginName}", func(r chi.Router) {
			r.Post("/reload", wrapJSONHandler(s.handleReload))
			r.Mount("/", newPluginMount(m, docbridge.RoleAPI))
		})
	})
	router.Route("/plugins/{pluginName}", func(r chi.Router) {
		r.Mount("/", newPluginMount(m, docbridge.RoleWeb))
	})

	for _, h := range b.handlers {
		router.Mount(h.prefix, h.handler)
	}

	return s
}

// scopeLogger attaches the server logger to request contexts that don't carry
// one, so handlers can log without nil checks.
func scopeLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if logging.FromContext(ctx) == nil {
				r = r.WithContext(logging.With(ctx, log))
			}
			next.ServeHTTP(w, r)
		})
	}
}
