package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/query"
)

// NewTransport returns a query.Transport that POSTs request envelopes to a
// query endpoint. Error responses still carry an error envelope in the
// body; it is returned as the response so the client surfaces the wire
// code rather than a bare HTTP status.
func NewTransport(url string, httpClient *http.Client) query.Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return func(ctx context.Context, request map[string]any) (map[string]any, error) {
		body, err := json.Marshal(request)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Transport", "Send", "request encoding")
		}

		httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, errors.WrapInvalid(err, "Transport", "Send", "request construction")
		}
		httpRequest.Header.Set("Content-Type", "application/json")

		httpResponse, err := httpClient.Do(httpRequest)
		if err != nil {
			return nil, errors.WrapRecoverable(err, "Transport", "Send", "http request")
		}
		defer func() { _ = httpResponse.Body.Close() }()

		var response map[string]any
		if err := json.NewDecoder(httpResponse.Body).Decode(&response); err != nil {
			return nil, errors.WrapRecoverable(
				fmt.Errorf("status %d with undecodable body: %w", httpResponse.StatusCode, err),
				"Transport", "Send", "response decoding")
		}
		return response, nil
	}
}
