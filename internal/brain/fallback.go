package brain

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// FallbackAdapter generates with primary and retries the same request on
// secondary when primary errors or returns an empty reply. A cancelled or
// expired ctx is returned as-is.
type FallbackAdapter struct {
	primary   Adapter
	secondary Adapter
}

func NewFallbackAdapter(primary, secondary Adapter) *FallbackAdapter {
	return &FallbackAdapter{primary: primary, secondary: secondary}
}

func (a *FallbackAdapter) Generate(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	adapters := make([]Adapter, 0, 2)
	for _, ad := range []Adapter{a.primary, a.secondary} {
		if ad != nil {
			adapters = append(adapters, ad)
		}
	}
	if len(adapters) == 0 {
		return MessageResponse{}, errors.New("fallback adapter: no adapters configured")
	}

	var errs []error
	for i, ad := range adapters {
		resp, err := ad.Generate(ctx, req)
		if err == nil && resp.Text == "" {
			err = ErrEmptyReply
		}
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return MessageResponse{}, err
		}
		errs = append(errs, err)
		if i+1 < len(adapters) {
			log.Printf("brain: primary failed, trying fallback: %v", err)
		}
	}
	if len(errs) == 1 {
		return MessageResponse{}, errs[0]
	}
	return MessageResponse{}, fmt.Errorf("primary: %w; fallback: %w", errs[0], errs[1])
}
