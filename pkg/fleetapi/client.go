package fleetapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fleetmap/fleetmap/pkg/fleetdf"
	"github.com/fleetmap/fleetmap/pkg/util"
)

// ErrEndpointAbsent marks a telemetry class endpoint the upstream account
// simply does not have. Callers treat it as an empty successful result.
var ErrEndpointAbsent = errors.New("telemetry class endpoint not available upstream")

// TransportError is a class-level upstream failure, carrying enough of the
// response for the poll-result log.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream request failed: %s", e.Err)
	}

	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RawRecord is one telemetry record as the upstream returned it. The field
// layout varies by account age, so extraction happens in the normalizer.
type RawRecord map[string]interface{}

type Page struct {
	Records []RawRecord

	// TotalPages is 0 when the upstream response carries no pagination
	// block. Callers then fall back to the short-page heuristic.
	TotalPages int
}

type listResponse struct {
	Data       []RawRecord `json:"data"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

type Client struct {
	BaseURL string
	Token   string

	httpClient *http.Client
}

func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,

		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListPage fetches one page of telemetry records for the given class.
func (c *Client) ListPage(ctx context.Context, class fleetdf.TelemetryClass, page int, pageSize int) (*Page, error) {
	requestURL := fmt.Sprintf("%s/%s?page=%d&page_size=%d", c.BaseURL, class, page, pageSize)

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.Token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrEndpointAbsent
	}

	jsonBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       util.TrimString(string(jsonBytes), 512),
		}
	}

	var response listResponse
	if err := json.Unmarshal(jsonBytes, &response); err != nil {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       util.TrimString(string(jsonBytes), 512),
			Err:        err,
		}
	}

	return &Page{
		Records:    response.Data,
		TotalPages: response.Pagination.TotalPages,
	}, nil
}
