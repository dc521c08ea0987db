package testutil

import (
	"context"
	"net/http"
	"time"

	"kycreview/pkg/requestcontext"
)

// ReviewContext returns a context carrying what the HTTP middleware would set
// for a reviewer request: a fixed clock, a request id and the acting reviewer.
func ReviewContext(now time.Time, requestID, actorID string) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, requestID)
	return requestcontext.WithActorID(ctx, actorID)
}

// WithActor sets the acting reviewer on the request, as the Actor middleware does.
func WithActor(req *http.Request, actorID string) *http.Request {
	return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
}

// WithRequestTime pins request time for handlers called without the middleware chain.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
