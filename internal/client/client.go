// Package client assembles the session store, resource store and polling
// reconciler from configuration.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/api"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/archive"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/config"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/notify"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/poller"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/session"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/store"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/tokenstore"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/tracing"
)

// webhookRetryInterval is how often failed webhook deliveries are retried
const webhookRetryInterval = 30 * time.Second

// Client holds the wired object graph
type Client struct {
	Config  *config.Config
	Logger  *logging.Logger
	API     *api.Client
	Tokens  tokenstore.Store
	Session *session.Store
	Store   *store.Store
	Poller  *poller.Reconciler
	// Webhook is nil unless notify.webhookURL is set
	Webhook *notify.Webhook

	cancel    context.CancelFunc
	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error

	archiveOnce sync.Once
	archiver    *archive.Archiver
	archiveErr  error
}

// Option customises New
type Option func(*Client)

// WithTokenStore overrides the configured token store
func WithTokenStore(s tokenstore.Store) Option {
	return func(c *Client) {
		c.Tokens = s
	}
}

// New builds a client from cfg. Background workers stop on Close.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		Config: cfg,
		Logger: logger,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.init(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) init(ctx context.Context) error {
	cfg := c.Config

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, closer)
	}

	if c.Tokens == nil {
		tokens, err := newTokenStore(cfg)
		if err != nil {
			return err
		}
		c.Tokens = tokens
	}

	apiClient, err := api.NewClient(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
		UserAgent: cfg.API.UserAgent,
	}, api.TokenSourceFunc(func(ctx context.Context) (string, error) {
		return tokenstore.AccessToken(ctx, c.Tokens)
	}), c.Logger)
	if err != nil {
		return err
	}
	c.API = apiClient

	c.Session = session.New(apiClient, c.Tokens, c.Logger)
	c.Store = store.New(apiClient, c.Logger)

	notifier, err := c.buildNotifier(ctx)
	if err != nil {
		return err
	}
	c.Poller = poller.New(c.Store, notifier, cfg.Poll.Interval, c.Logger)

	return nil
}

func newTokenStore(cfg *config.Config) (tokenstore.Store, error) {
	switch cfg.Session.Backend {
	case "memory":
		return tokenstore.NewMemoryStore(), nil
	case "redis":
		rs, err := tokenstore.NewRedisStore(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Session.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "file", "":
		return tokenstore.NewFileStore(cfg.Session.Path), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func (c *Client) buildNotifier(ctx context.Context) (notify.Notifier, error) {
	cfg := c.Config
	var sinks notify.Multi

	if cfg.Notify.WebhookURL != "" {
		c.Webhook = notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret, c.Logger)
		go c.Webhook.RetryWorker(ctx, webhookRetryInterval)
		sinks = append(sinks, c.Webhook)
	}

	if cfg.Notify.AMQPEnabled {
		pub, err := notify.NewAMQPPublisher(cfg.Notify.AMQP)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pub)
		sinks = append(sinks, pub)
	}

	if cfg.Archive.AutoArchive {
		a, err := c.Archiver()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, a)
	}

	if len(sinks) == 0 {
		return notify.Nop{}, nil
	}
	return sinks, nil
}

// Archiver connects to object storage on first use
func (c *Client) Archiver() (*archive.Archiver, error) {
	c.archiveOnce.Do(func() {
		storage, err := archive.NewStorage(c.Config.Archive)
		if err != nil {
			c.archiveErr = err
			return
		}
		c.archiver, c.archiveErr = archive.New(storage, c.Config.API.BaseURL, c.Logger)
	})
	return c.archiver, c.archiveErr
}

// Close stops watches and background workers and releases connections.
// Calling it again is a no-op.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.Poller != nil {
			c.Poller.StopAll()
		}
		c.cancel()

		if closer, ok := c.Tokens.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}

		var errs []error
		for _, closer := range c.closers {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
