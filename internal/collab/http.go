package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// defaultHTTPTimeout bounds collaborator calls when no client is supplied.
const defaultHTTPTimeout = 10 * time.Second

// doJSON performs one JSON request and decodes the response into out when
// out is non-nil. Conflict and missing-resource responses map onto the
// shared sentinel errors so workflows can match them by kind.
func doJSON(ctx context.Context, client *http.Client, method, rawURL string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return ErrAlreadyExists
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	if out != nil {
		if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
			return fmt.Errorf("decode response: %w", decodeErr)
		}
	}
	return nil
}

func orDefault(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// HTTPCatalog implements Catalog against the catalog service's JSON API.
type HTTPCatalog struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCatalog creates a catalog client. If httpClient is nil, a default
// client with a 10 second timeout is used.
func NewHTTPCatalog(baseURL string, httpClient *http.Client) *HTTPCatalog {
	return &HTTPCatalog{baseURL: baseURL, httpClient: orDefault(httpClient)}
}

// CreateDatabase creates a catalog database.
func (c *HTTPCatalog) CreateDatabase(ctx context.Context, db Database) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/api/v1/databases", db, nil)
}

// UpdateDatabaseOwner sets the owner display name on a database.
func (c *HTTPCatalog) UpdateDatabaseOwner(ctx context.Context, name, ownerName string) error {
	return doJSON(ctx, c.httpClient, http.MethodPut,
		fmt.Sprintf("%s/api/v1/databases/%s/owner", c.baseURL, url.PathEscape(name)),
		map[string]string{"owner_name": ownerName}, nil)
}

// CreateTable creates a table entry in a database.
func (c *HTTPCatalog) CreateTable(ctx context.Context, database string, table TableSpec) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/databases/%s/tables", c.baseURL, url.PathEscape(database)),
		table, nil)
}

// CreateResourceLink creates a local alias to a remote table.
func (c *HTTPCatalog) CreateResourceLink(ctx context.Context, link ResourceLink) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/api/v1/resource-links", link, nil)
}

// HTTPPermissions implements Permissions against the permission store's
// JSON API.
type HTTPPermissions struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPPermissions creates a permission store client. If httpClient is
// nil, a default client with a 10 second timeout is used.
func NewHTTPPermissions(baseURL string, httpClient *http.Client) *HTTPPermissions {
	return &HTTPPermissions{baseURL: baseURL, httpClient: orDefault(httpClient)}
}

// RegisterLocation registers a storage location for governance.
func (c *HTTPPermissions) RegisterLocation(ctx context.Context, locationURI string) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/api/v1/locations",
		map[string]string{"location_uri": locationURI}, nil)
}

// GrantLocationAccess grants a principal access to a location.
func (c *HTTPPermissions) GrantLocationAccess(ctx context.Context, principal, locationURI string) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/api/v1/grants/location",
		map[string]string{"principal": principal, "location_uri": locationURI}, nil)
}

// GrantTableAccess grants a principal standard access to a table.
func (c *HTTPPermissions) GrantTableAccess(ctx context.Context, principal, database, table string) error {
	return c.grantTable(ctx, principal, database, table, false)
}

// GrantAllTableAccess grants a principal full access to a table.
func (c *HTTPPermissions) GrantAllTableAccess(ctx context.Context, principal, database, table string) error {
	return c.grantTable(ctx, principal, database, table, true)
}

func (c *HTTPPermissions) grantTable(ctx context.Context, principal, database, table string, all bool) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/api/v1/grants/table",
		map[string]any{
			"principal": principal,
			"database":  database,
			"table":     table,
			"all":       all,
		}, nil)
}

// ListInvitations returns all share invitations visible to this domain.
func (c *HTTPPermissions) ListInvitations(ctx context.Context) ([]Invitation, error) {
	var invitations []Invitation
	err := doJSON(ctx, c.httpClient, http.MethodGet,
		c.baseURL+"/api/v1/invitations", nil, &invitations)
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// AcceptInvitation accepts an invitation and returns the resulting status.
func (c *HTTPPermissions) AcceptInvitation(ctx context.Context, id string) (InvitationStatus, error) {
	var result struct {
		Status InvitationStatus `json:"status"`
	}
	err := doJSON(ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/invitations/%s/accept", c.baseURL, url.PathEscape(id)),
		nil, &result)
	if err != nil {
		return "", err
	}
	return result.Status, nil
}

// HTTPCrawlJobs implements CrawlJobs against the crawl-job runner's
// JSON API.
type HTTPCrawlJobs struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPCrawlJobs creates a crawl-job runner client. If httpClient is
// nil, a default client with a 10 second timeout is used.
func NewHTTPCrawlJobs(baseURL string, httpClient *http.Client) *HTTPCrawlJobs {
	return &HTTPCrawlJobs{baseURL: baseURL, httpClient: orDefault(httpClient)}
}

// Create registers a crawl job for a table.
func (c *HTTPCrawlJobs) Create(ctx context.Context, name, database, table string) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		c.baseURL+"/api/v1/jobs",
		map[string]string{"name": name, "database": database, "table": table}, nil)
}

// Start begins a created job.
func (c *HTTPCrawlJobs) Start(ctx context.Context, name string) error {
	return doJSON(ctx, c.httpClient, http.MethodPost,
		fmt.Sprintf("%s/api/v1/jobs/%s/start", c.baseURL, url.PathEscape(name)), nil, nil)
}

// Get returns the current state of a job.
func (c *HTTPCrawlJobs) Get(ctx context.Context, name string) (JobState, error) {
	var result struct {
		State JobState `json:"state"`
	}
	err := doJSON(ctx, c.httpClient, http.MethodGet,
		fmt.Sprintf("%s/api/v1/jobs/%s", c.baseURL, url.PathEscape(name)), nil, &result)
	if err != nil {
		return "", err
	}
	return result.State, nil
}

// Delete removes a job.
func (c *HTTPCrawlJobs) Delete(ctx context.Context, name string) error {
	return doJSON(ctx, c.httpClient, http.MethodDelete,
		fmt.Sprintf("%s/api/v1/jobs/%s", c.baseURL, url.PathEscape(name)), nil, nil)
}
