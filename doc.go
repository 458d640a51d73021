// Package ingestion provides a native Go client for the Microsoft Partner
// Center Ingestion API, the publishing surface behind AppSource offers for
// Dynamics 365 Business Central.
//
// # Features
//
//   - Generic verb methods (Get, GetCollection, Post, Put, Delete) that
//     work against any resource path
//   - Typed product and submission service on the same pipeline
//   - Modern Go 1.25+ iterators with transparent nextLink pagination
//   - Bearer tokens renewed through an oauth2.TokenSource before each call
//   - Typed errors for precise error handling
//   - Pluggable telemetry scopes and structured logging
//
// # Quick Start
//
//	cc := &clientcredentials.Config{
//	    ClientID:     clientID,
//	    ClientSecret: clientSecret,
//	    TokenURL:     "https://login.microsoftonline.com/" + tenantID + "/oauth2/v2.0/token",
//	    Scopes:       []string{"https://api.partner.microsoft.com/.default"},
//	}
//
//	client, err := ingestion.NewClient(
//	    ingestion.WithTokenSource(cc.TokenSource(ctx)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Walk every product of the account
//	for product, err := range client.Products.List(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Printf("Product: %s (%s)\n", product.Name, product.ID)
//	}
//
// # Error Handling
//
// The package uses typed errors that can be inspected with errors.As. API
// failures are reported to telemetry once and returned unchanged; the client
// never retries.
//
//	product, err := client.Products.Get(ctx, "invalid-id")
//	if err != nil {
//	    var notFound *ingestion.NotFoundError
//	    if errors.As(err, &notFound) {
//	        // Handle not found
//	    }
//	}
//
// # Pagination
//
// Collection responses arrive as {"value": [...], "nextLink": "..."} pages.
// Iterators follow nextLink transparently:
//
//	// Iterate over all items
//	for res, err := range client.GetCollection(ctx, "products") {
//	    // ...
//	}
//
//	// Collect all items into a slice
//	products, err := ingestion.Collect(client.GetCollection(ctx, "products"))
//
//	// Or page through manually
//	page, err := client.GetCollectionPage(ctx, "products")
//	for page.HasMore() {
//	    page, err = client.GetCollectionPage(ctx, page.NextLink)
//	    // ...
//	}
package ingestion
