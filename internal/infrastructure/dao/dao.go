// Package dao maps each remote resource to typed calls on the request
// executor. DAOs hold no state; decoding tolerates both enveloped and bare
// payloads since server deployments differ.
package dao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/servicehub/marketplace-client/internal/core/domain"
	"github.com/servicehub/marketplace-client/internal/infrastructure/httpclient"
)

// Executor runs one API request and decodes its unwrapped payload into out.
type Executor interface {
	Do(ctx context.Context, req httpclient.Request, out any) error
}

// listPayload is the object form of a paginated answer.
type listPayload struct {
	Total      *int  `json:"total"`
	HasMore    *bool `json:"hasMore"`
	Pagination *struct {
		Total   *int  `json:"total"`
		HasMore *bool `json:"hasMore"`
	} `json:"pagination"`
}

// decodeList reads either a bare JSON array or an object holding the array
// under one of keys, plus optional total / hasMore metadata.
func decodeList[T any](raw json.RawMessage, offset, limit int, keys ...string) (*domain.Page[T], error) {
	page := &domain.Page[T]{Offset: offset, Limit: limit}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		page.Items = []T{}
		return page, nil
	}

	var total *int
	var hasMore *bool
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Items); err != nil {
			return nil, decodeErr(err)
		}
	} else {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, decodeErr(err)
		}
		for _, k := range append(keys, "items", "results") {
			if v, ok := fields[k]; ok {
				if err := json.Unmarshal(v, &page.Items); err != nil {
					return nil, decodeErr(err)
				}
				break
			}
		}
		var meta listPayload
		if err := json.Unmarshal(trimmed, &meta); err != nil {
			return nil, decodeErr(err)
		}
		total, hasMore = meta.Total, meta.HasMore
		if meta.Pagination != nil {
			if total == nil {
				total = meta.Pagination.Total
			}
			if hasMore == nil {
				hasMore = meta.Pagination.HasMore
			}
		}
	}
	if page.Items == nil {
		page.Items = []T{}
	}

	n := len(page.Items)
	switch {
	case total != nil:
		page.Total = *total
	default:
		page.Total = offset + n
	}
	switch {
	case hasMore != nil:
		page.HasMore = *hasMore
	case total != nil:
		page.HasMore = offset+n < *total
	default:
		page.HasMore = limit > 0 && n == limit
	}
	return page, nil
}

// decodeUnder decodes the value stored under key when raw is an object that
// has it, and raw itself otherwise.
func decodeUnder(raw json.RawMessage, key string, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			if v, ok := fields[key]; ok {
				trimmed = v
			}
		}
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return decodeErr(err)
	}
	return nil
}

func decodeErr(err error) error {
	return &domain.AppError{
		Type:    domain.TypeInternal,
		Message: "unexpected response format",
		Err:     fmt.Errorf("dao decode: %w", err),
	}
}

func pageQuery(offset, limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func pathID(id string) string {
	return url.PathEscape(id)
}
