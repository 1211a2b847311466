package batch

import (
	"github.com/hydrodata-kr/waterlink/pkg/series"
)

// Result is an ordered mapping from caller-supplied keys to single-fetch
// outcomes. Iteration follows submission order. The orchestrator that
// produced a Result is its only writer; consumers get read-only access and
// the filter views return fresh Results instead of mutating in place.
type Result struct {
	keys    []string
	entries map[string]series.SingleResult
}

func newResult() *Result {
	return &Result{entries: make(map[string]series.SingleResult)}
}

// put records an outcome. Duplicate keys are last-write-wins: the entry is
// replaced but the key keeps its original position.
func (r *Result) put(key string, res series.SingleResult) {
	if _, exists := r.entries[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.entries[key] = res
}

// Len returns the number of distinct keys.
func (r *Result) Len() int { return len(r.keys) }

// Keys returns the keys in submission order.
func (r *Result) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Get returns the outcome for a key.
func (r *Result) Get(key string) (series.SingleResult, bool) {
	res, ok := r.entries[key]
	return res, ok
}

// Each visits every entry in submission order.
func (r *Result) Each(fn func(key string, res series.SingleResult)) {
	for _, k := range r.keys {
		fn(k, r.entries[k])
	}
}

// Successes returns a new Result holding only the successful entries.
func (r *Result) Successes() *Result {
	return r.filter(func(res series.SingleResult) bool { return res.Success })
}

// Failures returns a new Result holding only the failed entries.
func (r *Result) Failures() *Result {
	return r.filter(func(res series.SingleResult) bool { return !res.Success })
}

func (r *Result) filter(keep func(series.SingleResult) bool) *Result {
	out := newResult()
	for _, k := range r.keys {
		if res := r.entries[k]; keep(res) {
			out.put(k, res)
		}
	}
	return out
}
