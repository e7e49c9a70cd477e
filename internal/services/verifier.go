package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"plant-photo-backend/internal/errs"
	"plant-photo-backend/internal/models"
)

// VerificationInput is what an oracle sees of an upload
type VerificationInput struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Verifier classifies an image as success or not_plant.
// Implementations never return StatusDuplicate.
type Verifier interface {
	Verify(ctx context.Context, in VerificationInput) (models.VerificationStatus, error)
}

// RandomVerifier is the stub oracle: success with probability SuccessRate, otherwise not_plant
type RandomVerifier struct {
	mu          sync.Mutex
	successRate float64
	draw        func() float64
}

// NewRandomVerifier creates a stub oracle. draw defaults to math/rand when nil.
func NewRandomVerifier(successRate float64, draw func() float64) *RandomVerifier {
	if draw == nil {
		draw = rand.Float64
	}
	return &RandomVerifier{successRate: successRate, draw: draw}
}

func (v *RandomVerifier) Verify(ctx context.Context, _ VerificationInput) (models.VerificationStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.Lock()
	u := v.draw()
	v.mu.Unlock()

	if u < v.successRate {
		return models.StatusSuccess, nil
	}
	return models.StatusNotPlant, nil
}

// FixedVerifier always answers with the same outcome
type FixedVerifier struct {
	Outcome models.VerificationStatus
}

func (v FixedVerifier) Verify(ctx context.Context, _ VerificationInput) (models.VerificationStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return v.Outcome, nil
}

// TimeoutVerifier bounds each call of the wrapped oracle and normalizes its failures to errs.ErrUpstream
type TimeoutVerifier struct {
	next    Verifier
	timeout time.Duration
}

func NewTimeoutVerifier(next Verifier, timeout time.Duration) *TimeoutVerifier {
	return &TimeoutVerifier{next: next, timeout: timeout}
}

func (v *TimeoutVerifier) Verify(ctx context.Context, in VerificationInput) (models.VerificationStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	type result struct {
		status models.VerificationStatus
		err    error
	}
	done := make(chan result, 1)
	go func() {
		s, err := v.next.Verify(callCtx, in)
		done <- result{s, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			// caller went away; not an oracle problem
			if errors.Is(ctx.Err(), context.Canceled) {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w: %v", errs.ErrUpstream, r.err)
		}
		if !r.status.Persisted() {
			return "", fmt.Errorf("%w: unexpected outcome %q", errs.ErrUpstream, r.status)
		}
		return r.status, nil
	case <-callCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", errs.ErrUpstream, callCtx.Err())
	}
}
