package goAuthClient

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/goAuthClient/classify"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/transport"
)

// Builder assembles a Client. A Builder can be used for exactly one Build.
type Builder struct {
	config Config

	issuer     transport.Issuer
	httpClient *http.Client
	classifier classify.Classifier
	refreshFn  refresh.Func
	logger     *slog.Logger
	auditSink  AuditSink

	built bool
}

// New starts a Builder from DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Transport.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.Transport.BaseURL = baseURL
	return b
}

// WithIssuer replaces the default HTTP issuer. BaseURL becomes optional and the
// cookie jar is the issuer's own concern.
func (b *Builder) WithIssuer(issuer transport.Issuer) *Builder {
	b.issuer = issuer
	return b
}

// WithHTTPClient sets the *http.Client used by the default issuer.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithClassifier replaces the signature matcher built from Expiry.Signatures.
func (b *Builder) WithClassifier(c classify.Classifier) *Builder {
	b.classifier = c
	return b
}

// WithRefreshFunc replaces the default renew call (POST Transport.RefreshPath
// through the issuer).
func (b *Builder) WithRefreshFunc(fn refresh.Func) *Builder {
	b.refreshFn = fn
	return b
}

// WithLogger sets the logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables audit dispatch.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithSessionEndedHandler sets Refresh.OnSessionEnded.
func (b *Builder) WithSessionEndedHandler(fn func(error)) *Builder {
	b.config.Refresh.OnSessionEnded = fn
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	// A custom issuer owns addressing, so BaseURL is optional then.
	if err := cfg.validate(b.issuer == nil); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config:  cfg,
		logger:  logger.With("component", "goauthclient"),
		metrics: NewMetrics(cfg.Metrics),
	}

	// -------- ISSUER --------
	if b.issuer != nil {
		c.issuer = b.issuer
	} else {
		hi, err := transport.NewHTTPIssuer(transport.Config{
			BaseURL:    cfg.Transport.BaseURL,
			Timeout:    cfg.Transport.RequestTimeout,
			UserAgent:  cfg.Transport.UserAgent,
			HTTPClient: b.httpClient,
		})
		if err != nil {
			return nil, err
		}
		c.issuer = hi
		c.httpIssuer = hi
	}

	// -------- CLASSIFIER --------
	if b.classifier != nil {
		c.classifier = b.classifier
	} else {
		m, err := classify.New(cfg.Expiry.Signatures...)
		if err != nil {
			return nil, err
		}
		c.classifier = m
	}

	// -------- COORDINATOR --------
	fn := b.refreshFn
	if fn == nil {
		fn = c.renew
	}
	coord, err := refresh.New(fn,
		refresh.WithTimeout(cfg.Refresh.Timeout),
		refresh.WithHooks(c.refreshHooks()),
	)
	if err != nil {
		return nil, err
	}
	c.coordinator = coord

	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink, c.logger)
	c.executeDeps = c.buildExecuteDeps()

	b.built = true

	return c, nil
}
