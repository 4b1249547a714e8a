package interpreter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// mapItemContext extends a parent Context with the $$.Map.Item.Index and
// $$.Map.Item.Value fields a Map state's ItemSelector/ItemProcessor
// branches may reference, per states-language.net's Map state context
// object.
type mapItemContext struct {
	parent Context
	index  int
	value  Value
}

func (c mapItemContext) AsValue() Value {
	merged := map[string]any{}
	if base, ok := c.parent.AsValue().(map[string]any); ok {
		for k, v := range base {
			merged[k] = v
		}
	}
	merged["Map"] = map[string]any{
		"Item": map[string]any{"Index": float64(c.index), "Value": c.value},
	}
	return merged
}

// runParallel runs every Branch concurrently against the same input and
// collects their outputs into a JSON array, in branch declaration order.
func (e *Execution) runParallel(ctx context.Context, state *State, input Value) (Value, *ExecutionError) {
	n := len(state.Branches)
	results := make([]Value, n)
	errs := make([]*ExecutionError, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := range state.Branches {
		go func(i int, branch *Definition) {
			defer wg.Done()
			out, err := RunToCompletion(ctx, branch, input, e.execCtx, e.host)
			results[i], errs[i] = out, err
			if err != nil {
				slog.ErrorContext(ctx, "parallel branch failed", "branch", i, "error", err)
			} else {
				slog.DebugContext(ctx, "parallel branch completed", "branch", i)
			}
		}(i, &state.Branches[i])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, NewExecutionError(ErrorBranchFailed, err.String())
		}
	}
	out := make([]any, n)
	for i, r := range results {
		out[i] = r
	}
	return out, nil
}

// runMap fans Items out across a worker pool bounded by MaxConcurrency (0
// means unbounded), running the ItemProcessor once per item and applying
// the ToleratedFailureCount/Percentage thresholds against the failures it
// observes.
func (e *Execution) runMap(ctx context.Context, state *State, input Value) (Value, *ExecutionError) {
	itemsVal, err := e.resolvePath(state.compiled.itemsPath, input)
	if err != nil {
		return nil, NewExecutionError(ErrorItemReaderFailed, err.Error())
	}
	items, ok := itemsVal.([]any)
	if !ok {
		return nil, NewExecutionError(ErrorItemReaderFailed, fmt.Sprintf("ItemsPath did not resolve to an array, got %T", itemsVal))
	}

	proc := state.ItemProcessor
	if proc == nil {
		proc = state.Iterator
	}

	n := len(items)
	results := make([]Value, n)
	errs := make([]*ExecutionError, n)

	maxConcurrency := state.MaxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > n {
		maxConcurrency = n
	}
	if maxConcurrency == 0 {
		return results, nil
	}
	sem := make(chan struct{}, maxConcurrency)

	var wg sync.WaitGroup
	wg.Add(n)
	for i, item := range items {
		sem <- struct{}{}
		go func(i int, item Value) {
			defer wg.Done()
			defer func() { <-sem }()

			itemInput := item
			if state.compiled.itemSelector != nil {
				v, err := state.compiled.itemSelector.evaluate(ExecutionInput{
					Value:   item,
					Context: mapItemContext{parent: e.execCtx, index: i, value: item},
				})
				if err != nil {
					errs[i] = NewExecutionError(ErrorParameterPathFailure, err.Error())
					slog.ErrorContext(ctx, "map item selector failed", "item", i, "error", err)
					return
				}
				itemInput = v
			}

			out, execErr := RunToCompletion(ctx, proc, itemInput, mapItemContext{parent: e.execCtx, index: i, value: item}, e.host)
			if execErr != nil {
				errs[i] = execErr
				slog.ErrorContext(ctx, "map item failed", "item", i, "error", execErr)
				return
			}
			slog.DebugContext(ctx, "map item completed", "item", i)
			results[i] = out
		}(i, item)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		exceeded := state.ToleratedFailureCount == 0 && state.ToleratedFailurePercentage == 0
		if state.ToleratedFailureCount > 0 && failed > state.ToleratedFailureCount {
			exceeded = true
		}
		if !exceeded && state.ToleratedFailurePercentage > 0 {
			pct := float64(failed) / float64(n) * 100
			exceeded = pct > state.ToleratedFailurePercentage
		}
		if exceeded {
			slog.ErrorContext(ctx, "map exceeded tolerated failure threshold", "failed", failed, "total", n)
			return nil, NewExecutionError(ErrorExceedToleratedFailureThresh, fmt.Sprintf("%d/%d items failed", failed, n))
		}
		slog.WarnContext(ctx, "map tolerated item failures", "failed", failed, "total", n)
	}
	return results, nil
}
