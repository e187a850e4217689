package metrics

import (
	"context"

	"github.com/tendant/simple-mediaboard/internal/converters"
)

type instrumentedStripper struct {
	next converters.Stripper
	obs  Observer
}

// InstrumentStripper records the status of every strip next performs.
func InstrumentStripper(next converters.Stripper, o Observer) converters.Stripper {
	if o == nil {
		return next
	}
	return instrumentedStripper{next: next, obs: o}
}

func (s instrumentedStripper) Strip(ctx context.Context, path string) int {
	status := s.next.Strip(ctx, path)
	s.obs.RecordStrip(status)
	return status
}
