package orchestrator

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/traceload/pkg/errors"
)

// Split divides target records per second across workers. Every share is
// either target/workers or one more; the first target%workers workers take
// the extra unit so the shares sum to target exactly. When target is smaller
// than workers only target workers are planned, each at 1 record per second.
func Split(target, workers int) ([]int, error) {
	if target <= 0 {
		return nil, apperrors.Invalidf("target rate must be positive, got %d", target)
	}
	if workers <= 0 {
		return nil, apperrors.Invalidf("worker count must be positive, got %d", workers)
	}
	if workers > target {
		workers = target
	}
	base, rem := target/workers, target%workers
	rates := make([]int, workers)
	for i := range rates {
		rates[i] = base
		if i < rem {
			rates[i]++
		}
	}
	return rates, nil
}
