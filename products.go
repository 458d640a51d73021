package ingestion

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/bcpartner/go-ingestion/internal/api"
)

// ProductService provides typed operations on marketplace products and
// their submissions. Everything runs through the same scoped request
// pipeline as the generic verbs.
//
//go:generate mockery --name=ProductService --output=mocks --outpkg=mocks --filename=product_service.go
type ProductService interface {
	// List returns an iterator over all products of the account.
	// The iterator fetches pages lazily as you iterate.
	List(ctx context.Context, opts ...RequestOption) iter.Seq2[*Product, error]

	// Get retrieves a single product by its product ID.
	Get(ctx context.Context, id string, opts ...RequestOption) (*Product, error)

	// GetByAppID finds the product whose external IDs carry the given
	// Business Central app ID. The match happens client side; the API has
	// no server-side filter for external IDs.
	GetByAppID(ctx context.Context, appID string, opts ...RequestOption) (*Product, error)

	// Create creates a new product.
	Create(ctx context.Context, req *CreateProductRequest, opts ...RequestOption) (*Product, error)

	// Update replaces a product. The product must carry the etag of a
	// prior read; it is sent as If-Match.
	Update(ctx context.Context, product *Product, opts ...RequestOption) (*Product, error)

	// Delete removes a product by ID.
	Delete(ctx context.Context, id string, opts ...RequestOption) error

	// Submissions returns an iterator over a product's submissions.
	Submissions(ctx context.Context, productID string, opts ...RequestOption) iter.Seq2[*Submission, error]

	// CreateSubmission creates a new submission for a product.
	CreateSubmission(ctx context.Context, productID string, req *CreateSubmissionRequest, opts ...RequestOption) (*Submission, error)
}

// productService implements ProductService.
type productService struct {
	client *Client
}

func newProductService(client *Client) *productService {
	return &productService{client: client}
}

// List returns an iterator over all products of the account.
func (s *productService) List(ctx context.Context, opts ...RequestOption) iter.Seq2[*Product, error] {
	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)
	return collectionSeq[*Product](s.client, ctx, "products.List", "products", reqCfg)
}

// Get retrieves a single product by its product ID.
func (s *productService) Get(ctx context.Context, id string, opts ...RequestOption) (*Product, error) {
	if err := validateResourceID(id, "product"); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	var result Product
	err := s.client.doScoped(ctx, "products.Get", &api.Request{
		Method:  http.MethodGet,
		Path:    "products/" + url.PathEscape(id),
		Query:   reqCfg.query,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &result)
	if err != nil {
		return nil, enrichNotFound(err, "product", id)
	}
	return &result, nil
}

// GetByAppID finds the product carrying the given app ID.
func (s *productService) GetByAppID(ctx context.Context, appID string, opts ...RequestOption) (*Product, error) {
	if err := validateResourceID(appID, "app"); err != nil {
		return nil, err
	}

	product, err := First(Filter(s.List(ctx, opts...), func(p *Product) bool {
		return p.HasAppID(appID)
	}))
	if errors.Is(err, ErrEmptyIterator) {
		return nil, &NotFoundError{
			APIError:     APIError{StatusCode: http.StatusNotFound, Message: "no product carries this app ID"},
			ResourceType: "product",
			ResourceID:   appID,
		}
	}
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create creates a new product.
func (s *productService) Create(ctx context.Context, req *CreateProductRequest, opts ...RequestOption) (*Product, error) {
	if err := validateCreateProduct(req); err != nil {
		return nil, err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	body := *req
	if body.ResourceType == "" {
		body.ResourceType = ResourceTypeBusinessCentral
	}

	var result Product
	err := s.client.doScoped(ctx, "products.Create", &api.Request{
		Method:  http.MethodPost,
		Path:    "products",
		Query:   reqCfg.query,
		Body:    &body,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Update replaces a product using its etag for optimistic concurrency.
func (s *productService) Update(ctx context.Context, product *Product, opts ...RequestOption) (*Product, error) {
	if product == nil {
		return nil, &ValidationError{
			APIError: APIError{Message: "product cannot be nil"},
		}
	}
	if err := validateResourceID(product.ID, "product"); err != nil {
		return nil, err
	}
	if product.ETag == "" {
		return nil, &ValidationError{
			APIError: APIError{Message: "product must carry " + ETagKey + " from a prior read"},
		}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)
	reqCfg.headers.Set("If-Match", product.ETag)

	var result Product
	err := s.client.doScoped(ctx, "products.Update", &api.Request{
		Method:  http.MethodPut,
		Path:    "products/" + url.PathEscape(product.ID),
		Query:   reqCfg.query,
		Body:    product,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &result)
	if err != nil {
		return nil, enrichNotFound(err, "product", product.ID)
	}
	return &result, nil
}

// Delete removes a product by ID.
func (s *productService) Delete(ctx context.Context, id string, opts ...RequestOption) error {
	if err := validateResourceID(id, "product"); err != nil {
		return err
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	err := s.client.doScoped(ctx, "products.Delete", &api.Request{
		Method:  http.MethodDelete,
		Path:    "products/" + url.PathEscape(id),
		Query:   reqCfg.query,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, nil)
	if err != nil {
		return enrichNotFound(err, "product", id)
	}
	return nil
}

// Submissions returns an iterator over a product's submissions.
func (s *productService) Submissions(ctx context.Context, productID string, opts ...RequestOption) iter.Seq2[*Submission, error] {
	if err := validateResourceID(productID, "product"); err != nil {
		return errSeq[*Submission](err)
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)
	path := fmt.Sprintf("products/%s/submissions", url.PathEscape(productID))
	return collectionSeq[*Submission](s.client, ctx, "products.Submissions", path, reqCfg)
}

// CreateSubmission creates a new submission for a product.
func (s *productService) CreateSubmission(ctx context.Context, productID string, req *CreateSubmissionRequest, opts ...RequestOption) (*Submission, error) {
	if err := validateResourceID(productID, "product"); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &ValidationError{
			APIError: APIError{Message: "create request cannot be nil"},
		}
	}

	reqCfg := newRequestConfig()
	reqCfg.apply(opts...)

	body := *req
	if body.ResourceType == "" {
		body.ResourceType = ResourceTypeSubmission
	}

	var result Submission
	err := s.client.doScoped(ctx, "products.CreateSubmission", &api.Request{
		Method:  http.MethodPost,
		Path:    fmt.Sprintf("products/%s/submissions", url.PathEscape(productID)),
		Query:   reqCfg.query,
		Body:    &body,
		Headers: reqCfg.headers,
		Silent:  reqCfg.silent,
	}, &result)
	if err != nil {
		return nil, enrichNotFound(err, "product", productID)
	}
	return &result, nil
}

// validateResourceID checks that an identifier is not empty.
func validateResourceID(id, what string) error {
	if id == "" {
		return &ValidationError{
			APIError: APIError{Message: what + " ID cannot be empty"},
		}
	}
	return nil
}

// validateCreateProduct validates the create product request.
func validateCreateProduct(req *CreateProductRequest) error {
	if req == nil {
		return &ValidationError{
			APIError: APIError{Message: "create request cannot be nil"},
		}
	}
	if req.Name == "" {
		return &ValidationError{
			APIError: APIError{Message: "product name is required"},
		}
	}
	return nil
}

// enrichNotFound fills resource identity into a NotFoundError so callers see
// what was missing, not just a bare 404.
func enrichNotFound(err error, resourceType, id string) error {
	var nf *NotFoundError
	if errors.As(err, &nf) && nf.ResourceType == "" {
		nf.ResourceType = resourceType
		nf.ResourceID = id
	}
	return err
}

// errSeq returns an iterator that yields a single error and stops.
func errSeq[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
