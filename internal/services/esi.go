// ESI implementation of [FleetAPI]
//
// Endpoints follow https://esi.evetech.net/ui/ (fleets, characters/{id}/fleet). Character reads
// live in pilot.go.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/esifleet/internal/models"
	"github.com/desertthunder/esifleet/internal/shared"
	"golang.org/x/time/rate"
)

const (
	esiBaseURL     = "https://esi.evetech.net/latest"
	esiUserAgent   = "esifleet"
	defaultTimeout = 15 * time.Second
	defaultRate    = 20.0
)

// ESIService implements [FleetAPI] over the ESI REST API.
//
// Each call waits on a shared rate limiter and runs under its own timeout.
type ESIService struct {
	baseURL     string
	userAgent   string
	timeout     time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	credentials CredentialSource
}

// NewESIService creates an ESI client. A nil client uses [http.DefaultClient].
func NewESIService(cfg shared.ESIConfig, credentials CredentialSource, client *http.Client) *ESIService {
	if client == nil {
		client = http.DefaultClient
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = esiBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = esiUserAgent
	}

	timeout := cfg.RequestTimeout.Duration
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRate
	}

	return &ESIService{
		baseURL:     baseURL,
		userAgent:   userAgent,
		timeout:     timeout,
		httpClient:  client,
		limiter:     rate.NewLimiter(rate.Limit(limit), int(limit)+1),
		credentials: credentials,
	}
}

// APIResponse is a raw ESI response, kept for callers that need headers.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

type esiError struct {
	Error string `json:"error"`
}

// Do performs an authenticated request and returns the raw response.
//
// Transport failures and deadline expiry are classified, status codes are not.
func (s *ESIService) Do(ctx context.Context, characterID int64, method, endpoint string, body any) (*APIResponse, error) {
	token, err := s.credentials.AccessToken(ctx, characterID)
	if err != nil {
		return nil, err
	}
	return s.send(ctx, token, method, endpoint, body)
}

// send performs one request. An empty token sends no Authorization header.
func (s *ESIService) send(ctx context.Context, token, method, endpoint string, body any) (*APIResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: rate limit wait for %s %s: %v", shared.ErrRemoteTimeout, method, endpoint, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, method, endpoint, err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// doRequest performs an authenticated request, maps the status to an engine error and decodes result.
func (s *ESIService) doRequest(ctx context.Context, characterID int64, method, endpoint string, body, result any) error {
	resp, err := s.Do(ctx, characterID, method, endpoint, body)
	if err != nil {
		return err
	}
	return decodeResponse(method, endpoint, resp, result)
}

// doPublic performs an unauthenticated GET against a public endpoint.
func (s *ESIService) doPublic(ctx context.Context, endpoint string, result any) error {
	resp, err := s.send(ctx, "", http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return decodeResponse(http.MethodGet, endpoint, resp, result)
}

func decodeResponse(method, endpoint string, resp *APIResponse, result any) error {
	if err := statusError(method, endpoint, resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return fmt.Errorf("%w: failed to decode %s %s: %v", shared.ErrRemoteUnavailable, method, endpoint, err)
		}
	}
	return nil
}

func classify(ctx context.Context, method, endpoint string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s %s", shared.ErrRemoteTimeout, method, endpoint)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %s %s: %v", shared.ErrRemoteUnavailable, method, endpoint, err)
	}
}

func statusError(method, endpoint string, resp *APIResponse) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := http.StatusText(resp.StatusCode)
	var e esiError
	if json.Unmarshal(resp.Body, &e) == nil && e.Error != "" {
		detail = e.Error
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s %s: %s", shared.ErrPermissionDenied, method, endpoint, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s %s: %s", shared.ErrNotFound, method, endpoint, detail)
	default:
		return fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrRemoteUnavailable, method, endpoint, resp.StatusCode, detail)
	}
}

// GetCharacterFleet returns nil without error when ESI reports the character is not in a fleet.
func (s *ESIService) GetCharacterFleet(ctx context.Context, characterID int64) (*models.FleetRef, error) {
	var ref models.FleetRef
	err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/characters/%d/fleet/", characterID), nil, &ref)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *ESIService) GetFleet(ctx context.Context, characterID, fleetID int64) (*models.FleetInfo, error) {
	var info models.FleetInfo
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/fleets/%d/", fleetID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *ESIService) GetFleetMembers(ctx context.Context, characterID, fleetID int64) ([]models.Member, error) {
	var members []models.Member
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/fleets/%d/members/", fleetID), nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *ESIService) GetFleetWings(ctx context.Context, characterID, fleetID int64) ([]models.Wing, error) {
	var wings []models.Wing
	if err := s.doRequest(ctx, characterID, http.MethodGet, fmt.Sprintf("/fleets/%d/wings/", fleetID), nil, &wings); err != nil {
		return nil, err
	}
	return wings, nil
}

func (s *ESIService) CreateWing(ctx context.Context, characterID, fleetID int64) (int64, error) {
	var created struct {
		WingID int64 `json:"wing_id"`
	}
	if err := s.doRequest(ctx, characterID, http.MethodPost, fmt.Sprintf("/fleets/%d/wings/", fleetID), nil, &created); err != nil {
		return 0, err
	}
	if created.WingID == 0 {
		return 0, fmt.Errorf("%w: create wing returned no wing_id", shared.ErrRemoteUnavailable)
	}
	return created.WingID, nil
}

func (s *ESIService) RenameWing(ctx context.Context, characterID, fleetID, wingID int64, name string) error {
	endpoint := fmt.Sprintf("/fleets/%d/wings/%d/", fleetID, wingID)
	return s.doRequest(ctx, characterID, http.MethodPut, endpoint, map[string]string{"name": name}, nil)
}

func (s *ESIService) CreateSquad(ctx context.Context, characterID, fleetID, wingID int64) (int64, error) {
	var created struct {
		SquadID int64 `json:"squad_id"`
	}
	endpoint := fmt.Sprintf("/fleets/%d/wings/%d/squads/", fleetID, wingID)
	if err := s.doRequest(ctx, characterID, http.MethodPost, endpoint, nil, &created); err != nil {
		return 0, err
	}
	if created.SquadID == 0 {
		return 0, fmt.Errorf("%w: create squad returned no squad_id", shared.ErrRemoteUnavailable)
	}
	return created.SquadID, nil
}

func (s *ESIService) RenameSquad(ctx context.Context, characterID, fleetID, squadID int64, name string) error {
	endpoint := fmt.Sprintf("/fleets/%d/squads/%d/", fleetID, squadID)
	return s.doRequest(ctx, characterID, http.MethodPut, endpoint, map[string]string{"name": name}, nil)
}

func (s *ESIService) UpdateFleetSettings(ctx context.Context, characterID, fleetID int64, update models.FleetSettingsUpdate) error {
	return s.doRequest(ctx, characterID, http.MethodPut, fmt.Sprintf("/fleets/%d/", fleetID), update, nil)
}

func (s *ESIService) DeleteWing(ctx context.Context, characterID, fleetID, wingID int64) error {
	return s.doRequest(ctx, characterID, http.MethodDelete, fmt.Sprintf("/fleets/%d/wings/%d/", fleetID, wingID), nil, nil)
}

func (s *ESIService) DeleteSquad(ctx context.Context, characterID, fleetID, squadID int64) error {
	return s.doRequest(ctx, characterID, http.MethodDelete, fmt.Sprintf("/fleets/%d/squads/%d/", fleetID, squadID), nil, nil)
}

func (s *ESIService) MoveMember(ctx context.Context, characterID, fleetID, memberID int64, move models.MemberMove) error {
	endpoint := fmt.Sprintf("/fleets/%d/members/%d/", fleetID, memberID)
	return s.doRequest(ctx, characterID, http.MethodPut, endpoint, move, nil)
}
