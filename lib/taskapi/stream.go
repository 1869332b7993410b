// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package taskapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/lattice-ml/lattice/lib/netutil"
	"github.com/lattice-ml/lattice/lib/sse"
)

// StreamRequest configures OpenStream.
type StreamRequest struct {
	// Path is the stream endpoint. Empty means DefaultStreamPath.
	Path string

	// LastEventID resumes a dropped stream after the given event.
	LastEventID string
}

// ErrNotEventStream is wrapped by OpenStream when the server answers
// with something other than text/event-stream.
var ErrNotEventStream = errors.New("taskapi: response is not an event stream")

// OpenStream performs the stream handshake and returns the open
// response body. The request lives until ctx is cancelled or the body
// is closed. A non-2xx response returns an *APIError.
func (c *Client) OpenStream(ctx context.Context, streamRequest StreamRequest) (io.ReadCloser, error) {
	path := streamRequest.Path
	if path == "" {
		path = DefaultStreamPath
	}

	request, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", sse.ContentType)
	request.Header.Set("Cache-Control", "no-cache")
	if streamRequest.LastEventID != "" {
		request.Header.Set("Last-Event-ID", streamRequest.LastEventID)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("taskapi: opening stream %s: %w", path, err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		return nil, newAPIError(response.StatusCode, http.MethodGet, path, netutil.ErrorBody(response.Body))
	}

	mediaType, _, err := mime.ParseMediaType(response.Header.Get("Content-Type"))
	if err != nil || mediaType != sse.ContentType {
		response.Body.Close()
		return nil, fmt.Errorf("%w: got Content-Type %q from %s", ErrNotEventStream, response.Header.Get("Content-Type"), path)
	}

	c.logger.Debug("task stream opened",
		"path", path,
		"request_id", request.Header.Get(RequestIDHeader),
		"resume_from", streamRequest.LastEventID,
	)
	return response.Body, nil
}
