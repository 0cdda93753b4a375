package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// TokenStore lists linked characters and persists refreshed tokens.
type TokenStore interface {
	List(criteria map[string]any) ([]*models.Character, error)
	UpdateTokens(characterID int64, access, refresh string, expiresAt time.Time) error
}

// TokenRefresh trades a refresh token for a new token pair.
type TokenRefresh interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// RefreshOpts contains configuration for the token refresher.
type RefreshOpts struct {
	Interval  time.Duration // Time between passes (default: 1h)
	Window    time.Duration // Refresh tokens expiring within this window (default: 1h)
	Workers   int           // Concurrent workers (default: 4)
	RateLimit float64       // Refresh requests per second (default: 5)
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	Total     int
	Refreshed int
	Failed    int
	Errors    map[int64]error
}

type refreshJob struct {
	characterID  int64
	refreshToken string
}

type refreshOutcome struct {
	characterID int64
	err         error
}

// TokenRefresher keeps stored ESI tokens valid in the background, independent of the engine's call paths.
type TokenRefresher struct {
	store   TokenStore
	sso     TokenRefresh
	opts    RefreshOpts
	logger  *log.Logger
	limiter *rate.Limiter
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTokenRefresher creates a refresher. Zero options take their defaults.
func NewTokenRefresher(store TokenStore, sso TokenRefresh, opts RefreshOpts, logger *log.Logger) *TokenRefresher {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Window <= 0 {
		opts.Window = time.Hour
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Workers > 10 {
		opts.Workers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	return &TokenRefresher{
		store:   store,
		sso:     sso,
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		now:     time.Now,
	}
}

// Start runs a pass immediately and then every interval until ctx is done or Stop is called.
func (r *TokenRefresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()

		for {
			res := r.RefreshOnce(ctx, nil)
			if res.Total > 0 {
				r.logger.Info("refreshed tokens", "total", res.Total, "refreshed", res.Refreshed, "failed", res.Failed)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}(r.done)
}

// Stop cancels the loop and waits for the current pass to finish.
func (r *TokenRefresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RefreshOnce refreshes every character whose token expires within the window, using a worker pool.
//
// A failed character is logged and counted; the rest continue.
func (r *TokenRefresher) RefreshOnce(ctx context.Context, progress chan<- ProgressUpdate) RefreshResult {
	result := RefreshResult{Errors: map[int64]error{}}

	characters, err := r.store.List(map[string]any{
		"expiring_before":   r.now().Add(r.opts.Window),
		"has_refresh_token": true,
	})
	if err != nil {
		r.logger.Error("failed to list characters for refresh", "err", err)
		return result
	}

	result.Total = len(characters)
	if result.Total == 0 {
		return result
	}

	jobs := make(chan refreshJob, len(characters))
	outcomes := make(chan refreshOutcome, len(characters))

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go r.refreshWorker(ctx, &wg, jobs, outcomes)
	}

	for _, c := range characters {
		jobs <- refreshJob{characterID: c.CharacterID(), refreshToken: c.RefreshToken()}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	completed := 0
	for o := range outcomes {
		completed++
		sendProgress(progress, refreshedUpdate(completed, result.Total, o.characterID, o.err))

		if o.err != nil {
			result.Failed++
			result.Errors[o.characterID] = o.err
			r.logger.Warn("failed to refresh token", "character_id", o.characterID, "err", o.err)
			continue
		}
		result.Refreshed++
	}
	return result
}

func (r *TokenRefresher) refreshWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan refreshJob, outcomes chan<- refreshOutcome) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			outcomes <- refreshOutcome{characterID: job.characterID, err: err}
			continue
		}
		outcomes <- refreshOutcome{characterID: job.characterID, err: r.refreshOne(ctx, job)}
	}
}

func (r *TokenRefresher) refreshOne(ctx context.Context, job refreshJob) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := r.sso.Refresh(ctx, job.refreshToken)
	if err != nil {
		return err
	}

	refresh := token.RefreshToken
	if refresh == "" {
		refresh = job.refreshToken
	}

	if err := r.store.UpdateTokens(job.characterID, token.AccessToken, refresh, token.Expiry); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}
	return nil
}
