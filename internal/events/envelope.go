// Package events provides the cross-domain event channel: envelope types,
// a routing publisher, and a consumer-group reader over Redis Streams.
//
// Delivery is at-least-once and unordered across different trigger events.
// Workflows defend against duplicates with deterministic resource naming
// and already-exists tolerance, not with deduplication here.
package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Detail types carried on the channel.
const (
	// DetailTypeCreateDataProduct triggers the governance workflow on
	// the control-plane domain.
	DetailTypeCreateDataProduct = "createDataProduct"
	// DetailTypeExecutionSucceeded signals a workflow execution's
	// successful completion within a domain.
	DetailTypeExecutionSucceeded = "executionSucceeded"

	// createLinksSuffix tags the governance completion event for a
	// recipient domain: "<domainID>_createResourceLinks".
	createLinksSuffix = "_createResourceLinks"
)

// Envelope is the unit of delivery on the event channel.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail_type"`
	Detail     json.RawMessage `json:"detail"`
	Time       time.Time       `json:"time"`
}

// CreateLinksDetail is the payload of the governance completion event.
type CreateLinksDetail struct {
	DatabaseName string   `json:"database_name"`
	TableNames   []string `json:"table_names"`
}

// ExecutionSucceededDetail is the payload of the completion signal that
// triggers the metadata refresh workflow. Input carries the original
// workflow input serialized as a string, re-parsed by the receiver.
type ExecutionSucceededDetail struct {
	Workflow    string `json:"workflow"`
	ExecutionID string `json:"execution_id"`
	Input       string `json:"input"`
}

// CreateLinksDetailType returns the detail type addressing a recipient
// domain's intake workflow.
func CreateLinksDetailType(domainID string) string {
	return domainID + createLinksSuffix
}

// ParseCreateLinksDetailType extracts the recipient domain id from a
// createResourceLinks detail type. ok is false for other detail types.
func ParseCreateLinksDetailType(detailType string) (domainID string, ok bool) {
	if !strings.HasSuffix(detailType, createLinksSuffix) {
		return "", false
	}
	domainID = strings.TrimSuffix(detailType, createLinksSuffix)
	return domainID, domainID != ""
}

// StreamForDomain returns the inbound channel stream name for a domain.
func StreamForDomain(domainID string) string {
	return "events:" + domainID
}

// NewEnvelope builds an envelope with a fresh id and timestamp.
func NewEnvelope(source, detailType string, detail any) (Envelope, error) {
	payload, err := json.Marshal(detail)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.New(),
		Source:     source,
		DetailType: detailType,
		Detail:     payload,
		Time:       time.Now().UTC(),
	}, nil
}
