package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mkraev/venuetrace/internal/common"
	"github.com/mkraev/venuetrace/internal/logging"
	"github.com/mkraev/venuetrace/internal/models"
)

const requestTimeout = 30 * time.Second

const (
	feedPath     = "/v1/traceKeys"
	onsetPath    = "/v1/onset"
	keysPath     = "/v1/keys"
	checkInsPath = "/v1/userCheckIns"
)

// HTTPClient implements API over plain HTTP with a fixed request timeout.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	verifier Verifier
	log      logging.Logger
}

// NewHTTPClient returns an HTTPClient for the given base URL. verifier may
// be nil when payload signatures are checked elsewhere.
func NewHTTPClient(baseURL string, verifier Verifier, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: requestTimeout},
		verifier: verifier,
		log:      log,
	}
}

func (c *HTTPClient) FetchProblematicEvents(ctx context.Context, lastBundleTag *int64) (*Feed, error) {
	u, err := url.Parse(c.baseURL + feedPath)
	if err != nil {
		return nil, fmt.Errorf("bad feed url: %w", err)
	}
	if lastBundleTag != nil {
		q := u.Query()
		q.Set("lastKeyBundleTag", strconv.FormatInt(*lastBundleTag, 10))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotModified {
		return nil, &common.StatusError{Code: resp.StatusCode}
	}

	feed := &Feed{}
	// Header lookup is case-insensitive by contract.
	if tag := resp.Header.Get(common.BundleTagHeaderName); tag != "" {
		parsed, err := strconv.ParseInt(tag, 10, 64)
		if err != nil {
			c.log.Warn(ctx, "unparseable bundle tag header", "value", tag)
		} else {
			feed.BundleTag = &parsed
		}
	}

	if resp.StatusCode == http.StatusNotModified {
		return feed, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTransport, err)
	}

	if c.verifier != nil {
		sig := resp.Header.Get(common.SignatureHeaderName)
		if err := c.verifier.Verify(body, sig); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrSignature, err)
		}
	}

	feed.Raw = body
	return feed, nil
}

func (c *HTTPClient) ValidateCode(ctx context.Context, code string, fake bool) (string, error) {
	payload := map[string]any{
		"authorizationCode": code,
		"fake":              fakeFlag(fake),
	}

	resp, err := c.postJSON(ctx, onsetPath, "", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", common.ErrInvalidCode
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &common.StatusError{Code: resp.StatusCode}
	}

	var decoded struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrParse, err)
	}
	if decoded.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", common.ErrParse)
	}
	return decoded.AccessToken, nil
}

func (c *HTTPClient) SubmitKeys(ctx context.Context, token string, onset time.Time, fake bool) error {
	payload := map[string]any{
		"onset": onset.Format("2006-01-02"),
		"fake":  fakeFlag(fake),
	}

	resp, err := c.postJSON(ctx, keysPath, token, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &common.StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (c *HTTPClient) SubmitCheckIns(ctx context.Context, token string, checkIns []models.CheckInRecord, fake bool) error {
	items := make([]map[string]any, 0, len(checkIns))
	for _, rec := range checkIns {
		item := map[string]any{
			"venueToken": base64.StdEncoding.EncodeToString(rec.VenueToken),
			"arrival":    rec.Arrival.Unix(),
		}
		if rec.Departure != nil {
			item["departure"] = rec.Departure.Unix()
		}
		items = append(items, item)
	}
	payload := map[string]any{
		"checkIns": items,
		"fake":     fakeFlag(fake),
	}

	resp, err := c.postJSON(ctx, checkInsPath, token, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return &common.StatusError{Code: resp.StatusCode}
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path, token string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	return resp, nil
}

// fakeFlag keeps the wire shape identical between real and decoy requests;
// only this integer differs.
func fakeFlag(fake bool) int {
	if fake {
		return 1
	}
	return 0
}
