package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/models"
)

// Router dispatches requests to the provider named in the current settings
// and records per-model statistics.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	limiter   *rate.Limiter
	timeout   time.Duration
	fallback  Fallback
	monitor   *Monitor
	logger    *zap.Logger
}

// Fallback names the provider and model tried once when the primary fails
// with a network or provider error.
type Fallback struct {
	Provider string
	Model    string
}

// RouterOptions configure NewRouter.
type RouterOptions struct {
	RateLimit float64 // requests per second, 0 disables limiting
	Timeout   time.Duration
	Fallback  Fallback
	Logger    *zap.Logger
}

// NewRouter returns a Router with the mock provider registered.
func NewRouter(o RouterOptions, providers ...Provider) *Router {
	r := &Router{
		providers: map[string]Provider{},
		limiter:   rate.NewLimiter(rate.Inf, 0),
		timeout:   o.Timeout,
		fallback:  o.Fallback,
		monitor:   NewMonitor(),
		logger:    o.Logger,
	}
	if o.RateLimit > 0 {
		burst := int(o.RateLimit)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(o.RateLimit), burst)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.Register(NewMock())
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider under its name.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Provider returns the provider registered under name.
func (r *Router) Provider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Status returns the request statistics per provider and model.
func (r *Router) Status() []models.AIModelStatus { return r.monitor.Snapshot() }

// ResetStatus clears the request statistics.
func (r *Router) ResetStatus() { r.monitor.Reset() }

// Generate sends req to the named provider using model. When that fails
// with a network or provider error and a fallback is configured, the
// fallback is tried once and its response returned.
func (r *Router) Generate(ctx context.Context, providerName, model string, req Request) (*models.AIResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apperr.Invalid("prompt", "must not be empty")
	}
	if _, ok := r.Provider(providerName); !ok {
		return nil, apperr.Tool(providerName, apperr.ClassConfig, fmt.Errorf("provider %q is not configured", providerName))
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.attempt(ctx, providerName, model, req, false)
	if err == nil || !r.shouldFallback(ctx, err, providerName, model) {
		return resp, err
	}
	r.logger.Info("ai falling back",
		zap.String("from", providerName+"/"+model),
		zap.String("to", r.fallback.Provider+"/"+r.fallback.Model))
	fbResp, fbErr := r.attempt(ctx, r.fallback.Provider, r.fallback.Model, req, true)
	if fbErr != nil {
		// Report the primary failure.
		return nil, err
	}
	return fbResp, nil
}

func (r *Router) shouldFallback(ctx context.Context, err error, providerName, model string) bool {
	fb := r.fallback
	if fb.Provider == "" || ctx.Err() != nil {
		return false
	}
	if fb.Provider == providerName && fb.Model == model {
		return false
	}
	if _, ok := r.Provider(fb.Provider); !ok {
		return false
	}
	var toolErr *apperr.ExternalToolError
	if !errors.As(err, &toolErr) {
		return false
	}
	return toolErr.Class == apperr.ClassNetwork || toolErr.Class == apperr.ClassProvider
}

// attempt runs one rate-limited request against a single provider and
// records it in the monitor.
func (r *Router) attempt(ctx context.Context, providerName, model string, req Request, fallback bool) (*models.AIResponse, error) {
	p, ok := r.Provider(providerName)
	if !ok {
		return nil, apperr.Tool(providerName, apperr.ClassConfig, fmt.Errorf("provider %q is not configured", providerName))
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, apperr.Tool(providerName, apperr.ClassNetwork, fmt.Errorf("rate limit wait: %w", err))
	}

	req.Model = model
	start := time.Now()
	text, err := p.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		var toolErr *apperr.ExternalToolError
		if !errors.As(err, &toolErr) {
			err = apperr.Tool(providerName, apperr.ClassNetwork, err)
		}
		r.monitor.Record(providerName, model, elapsed, err, fallback)
		r.logger.Warn("ai generate failed",
			zap.String("provider", providerName),
			zap.String("model", model),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return nil, err
	}
	r.monitor.Record(providerName, model, elapsed, nil, fallback)
	r.logger.Debug("ai generate",
		zap.String("provider", providerName),
		zap.String("model", model),
		zap.Duration("duration", elapsed))

	return &models.AIResponse{
		ID:        ulid.Make().String(),
		Prompt:    req.Prompt,
		Response:  text,
		Model:     model,
		Provider:  providerName,
		Timestamp: time.Now().UTC(),
	}, nil
}
