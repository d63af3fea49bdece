package domain

import (
	"context"
	"time"
)

// EffectEvent describes the start or end of a side effect.
type EffectEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	EntryID   string        `json:"entry_id"`
	Kind      EffectKind    `json:"kind"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for executor observability.
type LifecycleHooks struct {
	OnEffectStart func(context.Context, *EffectEvent)
	OnEffectEnd   func(context.Context, *EffectEvent)
}
