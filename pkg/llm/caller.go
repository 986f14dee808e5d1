// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrEmptyReply is returned when the model keeps answering with an empty text.
var ErrEmptyReply = errors.New("model returned an empty reply")

const (
	DefaultMaxRetries = 5
	DefaultBackoff    = 10 * time.Second
	DefaultMaxBackoff = 5 * time.Minute
)

// CachedCaller wraps a ModelCaller with a cache and retries.
//
// Replies are cached under Key(Model, system, prompt). Errors and empty replies are retried up to
// MaxRetries attempts in total, waiting Backoff before the first retry and doubling the wait up to
// MaxBackoff. Empty replies are never cached.
type CachedCaller struct {
	Caller ModelCaller

	// Cache may be nil, to disable caching.
	Cache Cache

	// Model is only used in the cache key.
	Model string

	MaxRetries          int
	Backoff, MaxBackoff time.Duration
}

var _ ModelCaller = (*CachedCaller)(nil)

// NewCachedCaller returns a CachedCaller with the default retry policy.
func NewCachedCaller(caller ModelCaller, cache Cache, model string) *CachedCaller {
	return &CachedCaller{
		Caller:     caller,
		Cache:      cache,
		Model:      model,
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoff,
		MaxBackoff: DefaultMaxBackoff,
	}
}

// Call implements ModelCaller. An empty system message is replaced by DefaultSystemMessage.
func (c *CachedCaller) Call(ctx context.Context, prompt, system string, temperature float64) (string, error) {
	if system == "" {
		system = DefaultSystemMessage
	}
	key := Key(c.Model, system, prompt)
	if c.Cache != nil {
		if content, found := c.Cache.Get(key); found {
			klog.V(1).Infof("using cached reply %s", key)
			return content, nil
		}
	}

	attempts := max(c.MaxRetries, 1)
	wait := c.Backoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		klog.Infof("calling model %s (attempt %d/%d)", c.Model, attempt, attempts)
		reply, err := c.Caller.Call(ctx, prompt, system, temperature)
		reply = strings.TrimSpace(reply)
		switch {
		case err != nil:
			lastErr = err
			klog.Warningf("model %s failed: %v", c.Model, err)
		case reply == "":
			lastErr = ErrEmptyReply
			klog.Warningf("model %s returned an empty reply", c.Model)
		default:
			klog.Infof("model %s replied with %d characters", c.Model, len(reply))
			if c.Cache != nil {
				if err := c.Cache.Set(key, reply); err != nil {
					klog.Warningf("failed to cache reply: %v", err)
				}
			}
			return reply, nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return "", errors.Wrapf(err, "model %s call interrupted after %d attempts", c.Model, attempt)
		}
		wait = min(2*wait, max(c.MaxBackoff, c.Backoff))
	}
	return "", errors.Wrapf(lastErr, "model %s failed after %d attempts", c.Model, attempts)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
