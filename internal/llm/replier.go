package llm

import (
	"context"
	"fmt"

	"geocompliance/api/internal/review"
	"geocompliance/api/internal/util"
)

// ThreadReplier adapts a Provider to the review package's Replier interface.
// Thread replies carry the highlighted passage as grounding context when the
// document text is available.
type ThreadReplier struct {
	provider Provider
	context  func(ctx context.Context, rc review.ReplyContext) string
}

// NewThreadReplier wraps provider. contextFn may be nil; when set it supplies
// grounding text per reply (typically the highlighted passage).
func NewThreadReplier(provider Provider, contextFn func(ctx context.Context, rc review.ReplyContext) string) *ThreadReplier {
	return &ThreadReplier{provider: provider, context: contextFn}
}

func (r *ThreadReplier) Reply(ctx context.Context, rc review.ReplyContext) (review.Comment, error) {
	if r.provider == nil {
		return review.Comment{}, fmt.Errorf("no llm provider configured")
	}

	req := ReplyRequest{UserText: rc.UserText}
	if r.context != nil {
		req.Context = r.context(ctx, rc)
	}

	resp, err := r.provider.Respond(ctx, req)
	if err != nil {
		return review.Comment{}, fmt.Errorf("generate thread reply: %w", err)
	}

	return review.Comment{
		ID:        util.EpochID("response"),
		Author:    review.FallbackAuthor,
		Timestamp: "Just now",
		Content:   resp.Text,
		Kind:      review.KindSystem,
	}, nil
}
