package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"github.com/bcpartner/go-ingestion/internal/api"
)

// GetCollection returns a lazy iterator over every item of a collection. It
// fetches pages on demand, following the server's nextLink until the server
// stops supplying one, and yields items in page order. One telemetry scope
// spans the whole traversal.
//
// The first error ends the iteration; items from pages fetched before the
// failure have already been yielded.
func (c *Client) GetCollection(ctx context.Context, path string, opts ...RequestOption) iter.Seq2[Resource, error] {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)
	return collectionSeq[Resource](c, ctx, "ingestion.GetCollection", path, reqCfg)
}

// GetCollectionPage fetches a single collection page. pathOrNextLink is
// either a resource path or the NextLink of a previous page, for callers
// that want manual control over pagination.
func (c *Client) GetCollectionPage(ctx context.Context, pathOrNextLink string, opts ...RequestOption) (*CollectionPage, error) {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var page CollectionPage
	err := c.doScoped(ctx, "ingestion.GetCollectionPage", &api.Request{
		Method:  http.MethodGet,
		Path:    pathOrNextLink,
		Query:   reqCfg.query,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// collectionSeq is the shared pagination loop behind GetCollection and the
// typed services. It opens one telemetry scope for the whole traversal,
// reports at most one failure into it, and closes it even when the consumer
// abandons the iteration early.
//
// Caller-supplied query parameters go on the first request only; nextLink
// values already carry their own continuation query and are followed as-is.
func collectionSeq[T any](c *Client, ctx context.Context, operation, path string, reqCfg *requestConfig) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		ctx, scope := c.telemetry.StartOperation(ctx, operation)
		defer scope.Close()

		var zero T
		next := path
		query := reqCfg.query
		pages := 0
		for {
			var page collectionEnvelope
			err := c.do(ctx, scope, &api.Request{
				Method:  http.MethodGet,
				Path:    next,
				Query:   query,
				Headers: reqCfg.headers,
				Silent:  reqCfg.silent,
			}, &page)
			if err != nil {
				scope.TrackException(err)
				yield(zero, err)
				return
			}
			query = nil
			pages++

			for _, raw := range page.Value {
				if err := ctx.Err(); err != nil {
					scope.TrackException(err)
					yield(zero, err)
					return
				}
				var item T
				if err := json.Unmarshal(raw, &item); err != nil {
					err = fmt.Errorf("ingestion: decoding collection item: %w", err)
					scope.TrackException(err)
					yield(zero, err)
					return
				}
				if !yield(item, nil) {
					return
				}
			}

			switch {
			case page.NextLink == "":
				scope.TrackTrace("collection exhausted", "path", path, "pages", pages)
				return
			case page.NextLink == next:
				scope.TrackException(ErrPaginationCycle)
				yield(zero, ErrPaginationCycle)
				return
			case c.maxPages > 0 && pages >= c.maxPages:
				scope.TrackException(ErrTooManyPages)
				yield(zero, ErrTooManyPages)
				return
			}
			next = page.NextLink
		}
	}
}
