package ingestion

import (
	"encoding/json"
	"strings"
	"time"
)

// ETagKey is the OData annotation carrying a resource's concurrency token.
const ETagKey = "@odata.etag"

// Resource type discriminators understood by the Ingestion API.
const (
	ResourceTypeBusinessCentral = "AzureDynamics365BusinessCentral"
	ResourceTypeSubmission      = "Submission"
)

// ExternalIDTypeAppID tags an external ID as a Business Central app ID.
const ExternalIDTypeAppID = "AppId"

// Resource is one untyped object returned by the Ingestion API. Response
// bodies pass through undecorated; the helpers cover just the fields the
// client itself cares about.
type Resource map[string]any

// ID returns the resource's "id" field, or "" when absent.
func (r Resource) ID() string {
	return r.GetString("id")
}

// ETag returns the resource's "@odata.etag" value, or "" when absent.
func (r Resource) ETag() string {
	return r.GetString(ETagKey)
}

// GetString returns the named field as a string. It returns "" when the
// field is absent or not a string.
func (r Resource) GetString(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// CollectionPage is one page of a collection response.
type CollectionPage struct {
	Value    []Resource `json:"value"`
	NextLink string     `json:"nextLink"`
}

// HasMore reports whether the server advertised a further page.
func (p *CollectionPage) HasMore() bool {
	return p.NextLink != ""
}

// collectionEnvelope defers item decoding so each collection item is
// unmarshaled exactly once into whatever shape the consumer asked for.
type collectionEnvelope struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"nextLink"`
}

// ExternalID ties a product to an identity in another system, such as a
// Business Central app ID.
type ExternalID struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Product represents a marketplace product.
type Product struct {
	ID                  string       `json:"id,omitempty"`
	ResourceType        string       `json:"resourceType"`
	Name                string       `json:"name"`
	ExternalIDs         []ExternalID `json:"externalIDs,omitempty"`
	IsModularPublishing bool         `json:"isModularPublishing,omitempty"`
	ETag                string       `json:"@odata.etag,omitempty"`
}

// HasAppID reports whether the product carries the given app ID among its
// external IDs. Both the type tag and the value compare case-insensitively.
func (p *Product) HasAppID(appID string) bool {
	for _, ext := range p.ExternalIDs {
		if strings.EqualFold(ext.Type, ExternalIDTypeAppID) && strings.EqualFold(ext.Value, appID) {
			return true
		}
	}
	return false
}

// SubmissionState represents the lifecycle state of a submission.
type SubmissionState string

const (
	SubmissionInProgress SubmissionState = "InProgress"
	SubmissionPublished  SubmissionState = "Published"
)

// SubmissionSubstate tracks a submission through validation and publishing.
type SubmissionSubstate string

const (
	SubstateInDraft    SubmissionSubstate = "InDraft"
	SubstateSubmitted  SubmissionSubstate = "Submitted"
	SubstatePublishing SubmissionSubstate = "Publishing"
	SubstatePublished  SubmissionSubstate = "Published"
	SubstateFailed     SubmissionSubstate = "Failed"
)

// SubmissionTarget narrows where a submission lands, for example
// {Type: "Scope", Value: "Preview"}.
type SubmissionTarget struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Submission represents one push of a product's draft content toward
// preview or live.
type Submission struct {
	ID           string             `json:"id,omitempty"`
	ResourceType string             `json:"resourceType"`
	State        SubmissionState    `json:"state,omitempty"`
	Substate     SubmissionSubstate `json:"substate,omitempty"`
	Targets      []SubmissionTarget `json:"targets,omitempty"`
	PublishedAt  time.Time          `json:"publishedTimeInUtc,omitzero"` // Go 1.24+: omit when zero
	ETag         string             `json:"@odata.etag,omitempty"`
}

// CreateProductRequest contains data for creating a new product.
type CreateProductRequest struct {
	ResourceType        string       `json:"resourceType"`
	Name                string       `json:"name"`
	ExternalIDs         []ExternalID `json:"externalIDs,omitempty"`
	IsModularPublishing bool         `json:"isModularPublishing,omitempty"`
}

// CreateSubmissionRequest contains data for creating a new submission.
type CreateSubmissionRequest struct {
	ResourceType string             `json:"resourceType"`
	Targets      []SubmissionTarget `json:"targets,omitempty"`
	Resources    []string           `json:"resources,omitempty"`
}
