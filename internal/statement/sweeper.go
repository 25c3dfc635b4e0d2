package statement

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var sweptTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "statementvault_tokens_swept_total",
	Help: "Number of expired download tokens removed by the sweeper",
})

// Sweeper periodically purges download tokens that expired more than the
// retention window ago. Tokens inside the window stay queryable for audit
// and support even though they can no longer be redeemed. Runs never
// overlap: the loop is a single goroutine and a skipped tick is simply
// dropped.
type Sweeper struct {
	logger    *logrus.Logger
	tokens    TokenStore
	interval  time.Duration
	retention time.Duration

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

func NewSweeper(logger *logrus.Logger, tokens TokenStore, interval, retention time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &Sweeper{
		logger:    logger,
		tokens:    tokens,
		interval:  interval,
		retention: retention,
		stopChan:  make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	s.logger.WithFields(logrus.Fields{
		"interval":  s.interval,
		"retention": s.retention,
	}).Info("token sweeper started")
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.logger.Info("token sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.Sweep(context.Background()); err != nil {
				s.logger.WithError(err).Error("token sweep failed")
			}
		}
	}
}

// Sweep performs one cleanup pass and returns the number of tokens removed.
// Idempotent: a second pass with no newly eligible tokens removes zero rows.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention)

	removed, err := s.tokens.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	sweptTokensTotal.Add(float64(removed))
	s.logger.WithField("removed", removed).Info("cleaned up expired download tokens")

	return removed, nil
}
