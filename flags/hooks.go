package flags

import (
	"context"
)

// Hook functions observe and may transform engine payloads in place. Hook
// errors are logged and skipped; they never fail the parent operation.
type (
	PlanHook   func(ctx context.Context, plan *Plan) error
	FlagHook   func(ctx context.Context, flag *FlagDetail) error
	ListHook   func(ctx context.Context, res *ListResult) error
	UpdateHook func(ctx context.Context, ev *UpdateEvent) error
)

// HookRegistry holds the extension hook points, populated at startup.
type HookRegistry struct {
	OnPlan    []PlanHook
	OnHydrate []FlagHook
	OnList    []ListHook
	OnUpdate  []UpdateHook
	OnCreate  []FlagHook
}

func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

func (e *Engine) firePlanHooks(ctx context.Context, plan *Plan) {
	if e.Hooks == nil {
		return
	}
	for _, h := range e.Hooks.OnPlan {
		if err := h(ctx, plan); err != nil {
			e.Logger.Error("flag plan hook failed", "err", err)
		}
	}
}

func (e *Engine) fireHydrateHooks(ctx context.Context, flag *FlagDetail) {
	if e.Hooks == nil {
		return
	}
	for _, h := range e.Hooks.OnHydrate {
		if err := h(ctx, flag); err != nil {
			e.Logger.Error("flag hydrate hook failed", "err", err, "flagId", flag.ID)
		}
	}
}

func (e *Engine) fireListHooks(ctx context.Context, res *ListResult) {
	if e.Hooks == nil {
		return
	}
	for _, h := range e.Hooks.OnList {
		if err := h(ctx, res); err != nil {
			e.Logger.Error("flag list hook failed", "err", err)
		}
	}
}

func (e *Engine) fireUpdateHooks(ctx context.Context, ev *UpdateEvent) {
	if e.Hooks == nil {
		return
	}
	for _, h := range e.Hooks.OnUpdate {
		if err := h(ctx, ev); err != nil {
			e.Logger.Error("flag update hook failed", "err", err, "flagId", ev.FlagID)
		}
	}
}

func (e *Engine) fireCreateHooks(ctx context.Context, flag *FlagDetail) {
	if e.Hooks == nil {
		return
	}
	for _, h := range e.Hooks.OnCreate {
		if err := h(ctx, flag); err != nil {
			e.Logger.Error("flag create hook failed", "err", err, "flagId", flag.ID)
		}
	}
}
