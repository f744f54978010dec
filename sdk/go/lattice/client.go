package lattice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. Deliberations fan out to language models, so it is
// considerably longer than a typical REST call would need.
const DefaultHTTPTimeout = 120 * time.Second

// Client wraps the HTTP interactions with the lattice REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// DeliberateRequest is the payload for submitting a message to the council.
type DeliberateRequest struct {
	Message        string `json:"message"`
	ParticipantID  string `json:"participant_id,omitempty"`
	SessionContext string `json:"session_context,omitempty"`
}

// Outcome describes one actor's response within a round.
type Outcome struct {
	ActorID    string `json:"actor_id"`
	Text       string `json:"text"`
	State      string `json:"state"`
	DurationMS int64  `json:"duration_ms"`
	WorkUnits  int64  `json:"work_units"`
}

// Round is the full result of a deliberation.
type Round struct {
	Message      string    `json:"message"`
	Outcomes     []Outcome `json:"outcomes"`
	Synthesis    string    `json:"synthesis"`
	ThoughtHash  string    `json:"thought_hash"`
	Quality      string    `json:"quality_tier"`
	Participated []string  `json:"participated"`
	WorkUnits    int64     `json:"work_units"`
	DurationMS   int64     `json:"duration_ms"`
}

// SettlementResult is the deterministic split computed for a session pool.
type SettlementResult struct {
	RawTotal       int64   `json:"raw_total"`
	Tier           string  `json:"quality_tier"`
	Multiplier     float64 `json:"quality_multiplier"`
	EffectiveTotal int64   `json:"effective_total"`
	Participant    int64   `json:"participant_share"`
	PerActor       int64   `json:"per_actor_share"`
	ActorCount     int64   `json:"actor_count"`
	Infrastructure int64   `json:"infrastructure_share"`
}

// Disbursement reports a settlement together with its transfer tally.
type Disbursement struct {
	Result             SettlementResult `json:"result"`
	TransfersAttempted int              `json:"transfers_attempted"`
	TransfersFailed    int              `json:"transfers_failed"`
}

// SessionSnapshot is the current accumulated state of a session pool.
type SessionSnapshot struct {
	ParticipantID string   `json:"participant_id"`
	Total         int64    `json:"total"`
	Actors        []string `json:"actors"`
}

// Actor is the public view of a council member.
type Actor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Lens    string `json:"lens,omitempty"`
	Balance int64  `json:"balance"`
}

// ActorsResponse lists the council members together with the treasury.
type ActorsResponse struct {
	Actors   []Actor `json:"actors"`
	Treasury Actor   `json:"treasury"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("lattice api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the lattice API. When httpClient is
// nil, a default client with a long deliberation-friendly timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// Deliberate submits a message and waits for the synthesized round.
func (c *Client) Deliberate(ctx context.Context, req DeliberateRequest) (Round, error) {
	var round Round
	if err := c.post(ctx, "/api/v1/deliberations", req, &round); err != nil {
		return Round{}, err
	}
	return round, nil
}

// Settle triggers a settlement of the participant's session pool.
func (c *Client) Settle(ctx context.Context, participantID string) (Disbursement, error) {
	var out Disbursement
	payload := struct {
		ParticipantID string `json:"participant_id"`
	}{ParticipantID: participantID}
	if err := c.post(ctx, "/api/v1/settlements", payload, &out); err != nil {
		return Disbursement{}, err
	}
	return out, nil
}

// Session fetches the participant's unsettled pool state.
func (c *Client) Session(ctx context.Context, participantID string) (SessionSnapshot, error) {
	var snap SessionSnapshot
	endpoint := "/api/v1/sessions/" + url.PathEscape(participantID)
	if err := c.get(ctx, endpoint, &snap); err != nil {
		return SessionSnapshot{}, err
	}
	return snap, nil
}

// RecentDeliberations returns the newest audit records, most recent first.
func (c *Client) RecentDeliberations(ctx context.Context, limit int) ([]json.RawMessage, error) {
	endpoint := "/api/v1/deliberations"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var records []json.RawMessage
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Actors lists the configured council members and their balances.
func (c *Client) Actors(ctx context.Context) (ActorsResponse, error) {
	var out ActorsResponse
	if err := c.get(ctx, "/api/v1/actors", &out); err != nil {
		return ActorsResponse{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(data)),
		}
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
