// Package submit wraps the transport boundary with bounded retry,
// backoff and per-attempt timeouts. Transport failures are retried;
// explicit rejections are surfaced immediately, since resubmitting
// byte-identical rejected data cannot succeed.
package submit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Signer is the authorization context handed through to the transport.
// The harness never performs cryptography itself.
type Signer struct {
	PublicKey string
	KeyHandle string
}

// Receipt is the normalized result of an accepted submission.
type Receipt struct {
	Signature string
	Handles   map[string]string
	Detail    string
}

// TransportError is a network-level failure: the instruction may never
// have reached the program. Retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("submit: transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError is an explicit refusal from the receiving side. Not
// retried.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("submit: rejected (code %d): %s", e.Code, e.Message)
}

// Transport is the single contract with the outside world: opaque
// bytes plus signer context in, receipt or typed failure out.
type Transport interface {
	Submit(ctx context.Context, payload []byte, signer Signer) (Receipt, error)
}

// BackoffConfig defines retry delay growth between attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines submitter reliability defaults.
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		AttemptTimeout: 15 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// Result carries the receipt plus the attempt accounting the outcome
// log records.
type Result struct {
	Receipt  Receipt
	Attempts int
	Elapsed  time.Duration
}

// Submitter retries transport failures with backoff. One instance is
// shared across flows and resolver callers, so the jitter source is
// guarded.
type Submitter struct {
	transport Transport
	cfg       Config
	log       zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(transport Transport, cfg Config, log zerolog.Logger) *Submitter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Submitter{
		transport: transport,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       log,
	}
}

// Submit delivers payload, retrying transport failures up to the
// attempt budget. Total elapsed time spans every attempt and every
// backoff sleep.
func (s *Submitter) Submit(ctx context.Context, payload []byte, signer Signer) (Result, error) {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			s.rngMu.Lock()
			delay := NextDelay(s.cfg.Backoff, attempt, s.rng)
			s.rngMu.Unlock()
			s.log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("retrying submission")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Result{Attempts: attempt - 1, Elapsed: time.Since(start)}, &TransportError{Op: "backoff", Err: ctx.Err()}
			}
		}

		receipt, err := s.attempt(ctx, payload, signer)
		if err == nil {
			return Result{Receipt: receipt, Attempts: attempt, Elapsed: time.Since(start)}, nil
		}

		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			// Explicit rejection or anything else non-retryable.
			return Result{Attempts: attempt, Elapsed: time.Since(start)}, err
		}
		lastErr = err
	}

	return Result{Attempts: s.cfg.MaxAttempts, Elapsed: time.Since(start)}, lastErr
}

func (s *Submitter) attempt(ctx context.Context, payload []byte, signer Signer) (Receipt, error) {
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}
	return s.transport.Submit(ctx, payload, signer)
}

// NextDelay returns the backoff delay preceding attempt N (1-based).
func NextDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay)
	for i := 2; i < attempt; i++ {
		delay *= cfg.Multiplier
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}
