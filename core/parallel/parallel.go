// Package parallel splits row-wise work across CPU cores.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultThreshold is the row count at or below which work stays on the
// calling goroutine. Training tables are far below it.
const DefaultThreshold = 1000

// Parallelize divides items into one contiguous range per CPU core and calls
// fn for each range concurrently. It returns when every call has returned.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold calls fn(0, items) directly when items does not
// exceed threshold, and Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
