package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sketchsync/sketchsync/internal/core/op"
)

var _ Store = (*HTTPStore)(nil)

// HTTPStore implements Store against the server's RPC surface, so a
// session is wired to a remote log the same way it is wired to an
// in-process one.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *HTTPStore) AppendOperations(ctx context.Context, documentID, clientID string, batch []op.Operation) (AppendResult, error) {
	if documentID == "" {
		return AppendResult{}, ErrEmptyDocumentID
	}

	wire := make([]WireOperation, len(batch))
	for i, o := range batch {
		wire[i] = WireOperation{OperationID: o.ID, Operation: o, ClientTimestamp: o.Timestamp}
	}
	body, err := json.Marshal(AppendRequest{ClientID: clientID, Operations: wire})
	if err != nil {
		return AppendResult{}, fmt.Errorf("encode append request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/documents/%s/operations", h.baseURL, url.PathEscape(documentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return AppendResult{}, fmt.Errorf("build append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return AppendResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return AppendResult{}, err
	}
	var out AppendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return AppendResult{}, fmt.Errorf("decode append response: %w", err)
	}
	return AppendResult{LastPosition: out.LastPosition, AppliedCount: out.AppliedCount}, nil
}

func (h *HTTPStore) GetOperationsSince(ctx context.Context, documentID string, since int64, excludeClientID string) ([]Record, error) {
	if documentID == "" {
		return nil, ErrEmptyDocumentID
	}

	endpoint := fmt.Sprintf("%s/v1/documents/%s/operations", h.baseURL, url.PathEscape(documentID))
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	if excludeClientID != "" {
		q.Set("excludeClient", excludeClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out OperationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode operations response: %w", err)
	}
	return out.Operations, nil
}

// checkStatus maps HTTP failures onto the store error taxonomy:
// authorization failures are hard errors, everything else non-2xx is
// treated as transient and left to the caller's retry policy.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
