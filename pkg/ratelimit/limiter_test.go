package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"tcgsync/pkg/config"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, 100*time.Millisecond)
	clock := time.Now()
	tb.now = func() time.Time { return clock }
	tb.lastRefill = clock

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}
	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	clock = clock.Add(250 * time.Millisecond)
	if !tb.Allow() || !tb.Allow() {
		t.Error("Expected two tokens after 250ms")
	}
	if tb.Allow() {
		t.Error("Expected partial token not to be spendable")
	}

	clock = clock.Add(time.Hour)
	tb.refill()
	if tb.tokens != tb.capacity {
		t.Errorf("Expected refill to cap at capacity, got %v", tb.tokens)
	}

	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestTokenBucketWait(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := tb.Wait(ctx); err != nil {
			t.Fatalf("Wait returned %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Expected Wait to pace requests, took %v", elapsed)
	}
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	tb.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	if sw.Allow() {
		t.Error("Expected request to be denied")
	}

	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned %v", err)
	}

	sw.Reset()
	if len(sw.requests) != 0 {
		t.Error("Expected requests to be cleared after reset")
	}
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(config.RateLimitConfig{}).(Unlimited); !ok {
		t.Error("Expected zero rate to disable limiting")
	}

	l := FromConfig(config.RateLimitConfig{RequestsPerMinute: 60, BurstSize: 10})
	tb, ok := l.(*TokenBucket)
	if !ok {
		t.Fatalf("Expected *TokenBucket, got %T", l)
	}
	if tb.capacity != 10 || tb.perToken != time.Second {
		t.Errorf("Unexpected bucket: capacity=%v perToken=%v", tb.capacity, tb.perToken)
	}

	l = FromConfig(config.RateLimitConfig{Strategy: config.RateLimitSlidingWindow, RequestsPerMinute: 30, BurstSize: 10})
	sw, ok := l.(*SlidingWindow)
	if !ok {
		t.Fatalf("Expected *SlidingWindow, got %T", l)
	}
	if sw.maxRequests != 30 || sw.windowSize != time.Minute {
		t.Errorf("Unexpected window: max=%d size=%v", sw.maxRequests, sw.windowSize)
	}
	for i := 0; i < 30; i++ {
		if !sw.Allow() {
			t.Fatalf("Expected request %d inside the window to pass", i+1)
		}
	}
	if sw.Allow() {
		t.Error("Expected the 31st request in a minute to be refused")
	}
}
