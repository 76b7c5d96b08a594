package cli

import (
	"context"
	"fmt"
	"meetscribe/internal/artifact"
	"meetscribe/internal/bot"
	"meetscribe/internal/config"
	"meetscribe/internal/metrics"
	"meetscribe/internal/pipeline"
	"meetscribe/internal/queue"
	"meetscribe/internal/render"
	"meetscribe/internal/speechtext"
	"meetscribe/internal/storage"
	"meetscribe/internal/summarizer"
	"meetscribe/pkg/cache"
	"meetscribe/pkg/resilience"

	"go.uber.org/zap"
)

const quotaProvider = "speechtext"

// closers releases connections opened while wiring
type closers []func()

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func (a *App) newStore() (*artifact.Store, error) {
	return artifact.NewStore(a.cfg.Pipeline.OutputDir)
}

func (a *App) newTranscriber() *speechtext.Client {
	st := a.cfg.SpeechText

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = st.RetryAttempts
	retry.InitialInterval = st.RetryBackoff

	return speechtext.NewClient(speechtext.Options{
		APIKey:         st.APIKey,
		BaseURL:        st.BaseURL,
		Language:       st.Language,
		Punctuation:    st.Punctuation,
		Speakers:       st.Speakers,
		Summary:        st.Summary,
		SummarySize:    st.SummarySize,
		PollInterval:   st.PollInterval,
		Timeout:        st.Timeout,
		MaxUploadBytes: a.cfg.MaxUploadBytes(),
		Extensions:     a.cfg.Pipeline.Extensions,
		Retry:          retry,
		UploadInterval: st.UploadInterval,
	}, a.log.Named("speechtext"))
}

func (a *App) newProvider(ctx context.Context) (summarizer.Provider, error) {
	switch a.cfg.Summary.Provider {
	case config.ProviderGemini:
		g := a.cfg.Gemini
		return summarizer.NewGemini(ctx, g.APIKey, g.Model, g.BaseURL)
	default:
		an := a.cfg.Anthropic
		return summarizer.NewAnthropic(an.APIKey, an.BaseURL, an.Model, an.MaxTokens), nil
	}
}

func (a *App) newSummarizer(ctx context.Context) (*summarizer.Summarizer, error) {
	provider, err := a.newProvider(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", a.cfg.Summary.Provider, err)
	}

	s := a.cfg.Summary
	return summarizer.New(provider, summarizer.Options{
		MaxTranscriptChars: s.MaxTranscriptChars,
		Timeout:            s.Timeout,
		BreakerFailures:    s.BreakerFailures,
		BreakerCooldown:    s.BreakerCooldown,
	}, a.log.Named("summarizer")), nil
}

func (a *App) loadTemplate() (string, error) {
	path := a.cfg.Pipeline.PromptTemplatePath
	tmpl, created, err := summarizer.LoadTemplate(path)
	if err != nil {
		return "", err
	}
	if created {
		a.log.Info("Created default prompt template", zap.String("path", path))
	}
	return tmpl, nil
}

// newOrchestrator wires a batch run from the configuration. The returned
// closers must be called once the batch and its sinks are done.
func (a *App) newOrchestrator(ctx context.Context) (*pipeline.Orchestrator, closers, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	a.log.Info("Configuration loaded", a.cfg.LogFields()...)

	store, err := a.newStore()
	if err != nil {
		return nil, nil, err
	}

	tmpl, err := a.loadTemplate()
	if err != nil {
		return nil, nil, err
	}

	sum, err := a.newSummarizer(ctx)
	if err != nil {
		return nil, nil, err
	}

	sink, cl := a.newSinks(ctx, store.Dir())

	orch := pipeline.NewOrchestrator(
		pipeline.Options{
			SourceDir:  a.cfg.Pipeline.SourceDir,
			Extensions: a.cfg.Pipeline.Extensions,
			Template:   tmpl,
		},
		store,
		a.newTranscriber(),
		sum,
		render.New(true),
		sink,
		a.log.Named("pipeline"),
	)
	return orch, cl, nil
}

// newSinks connects every configured report sink. A sink that cannot
// connect is skipped; the batch still runs.
func (a *App) newSinks(ctx context.Context, artifactDir string) (*pipeline.MultiSink, closers) {
	cfg := a.cfg
	log := a.log.Named("sink")
	sinks := pipeline.NewMultiSink(log)
	var cl closers

	skip := func(name string, err error) {
		log.Warn("Sink disabled", zap.String("sink", name), zap.Error(err))
	}

	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, storage.S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
		}, artifactDir, log)
		if err != nil {
			skip("s3", err)
		} else {
			sinks.Add(s3)
		}
	}

	if cfg.Postgres.DSN != "" {
		if db, err := storage.NewPostgresStorage(ctx, cfg.Postgres.DSN, log); err != nil {
			skip("postgres", err)
		} else {
			sinks.Add(db)
			cl = append(cl, db.Close)
		}
	}

	if cfg.RabbitMQ.URL != "" {
		if mq, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, log); err != nil {
			skip("rabbitmq", err)
		} else {
			sinks.Add(mq)
			cl = append(cl, func() { mq.Close() })
		}
	}

	if quota, closeFn, err := a.newQuotaStore(); err != nil {
		skip("redis", err)
	} else if quota != nil {
		sinks.Add(quota)
		cl = append(cl, closeFn)
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		if b, err := bot.NewBot(cfg.Telegram.Token, cfg.Telegram.ChatID, log); err != nil {
			skip("telegram", err)
		} else {
			sinks.Add(b)
		}
	}

	if cfg.Metrics.PushgatewayURL != "" {
		sinks.Add(metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, cfg.Metrics.Instance, log))
	}

	log.Info("Report sinks ready", zap.Int("count", sinks.Len()))
	return sinks, cl
}

// newQuotaStore returns nil without error when Redis is not configured
func (a *App) newQuotaStore() (*cache.QuotaStore, func(), error) {
	r := a.cfg.Redis
	if r.Addr == "" {
		return nil, nil, nil
	}

	rc, err := cache.NewRedisCache(r.Addr, r.Password, r.DB, r.Prefix, r.TTL)
	if err != nil {
		return nil, nil, err
	}
	return cache.NewQuotaStore(rc, quotaProvider), func() { rc.Close() }, nil
}
