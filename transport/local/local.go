// Package local provides the in-process transport: a query.Transport
// backed directly by an engine in the same process. It is the loopback the
// other transports are measured against and the natural choice for tests
// and embedded setups.
package local

import (
	"context"

	"github.com/layrjs/layr-sub008/query"
)

// NewTransport wraps an engine as a transport. Engine errors are converted
// to error envelopes, matching what a remote peer would receive over the
// network transports.
func NewTransport(engine *query.Engine) query.Transport {
	return func(ctx context.Context, request map[string]any) (map[string]any, error) {
		response, err := engine.Receive(ctx, request)
		if err != nil {
			return query.ErrorEnvelope(err), nil
		}
		return response, nil
	}
}
