package core

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

type executionHistory struct {
	mu    sync.Mutex
	items []TaskExecutionRecord
	head  int
	count int
}

func newExecutionHistory(capacity int) executionHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return executionHistory{items: make([]TaskExecutionRecord, capacity)}
}

func (h *executionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first.
func (h *executionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TaskExecutionRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *executionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskExecutionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

// resolveTaskName names a computation for history and logs: the explicit
// name if any, the function name for ComputationFunc values, otherwise the type.
func resolveTaskName(c any, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c == nil {
		return "anonymous"
	}

	v := reflect.ValueOf(c)
	if v.Kind() != reflect.Func {
		return fmt.Sprintf("%T", c)
	}

	pc := v.Pointer()
	if pc == 0 {
		return "anonymous"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil || fn.Name() == "" {
		return "anonymous"
	}
	return fn.Name()
}
