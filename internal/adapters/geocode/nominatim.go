package geocode

import (
	"context"
	"distance-matrix-service/internal/platform/obs"
	"distance-matrix-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NominatimClient implements ports.GeocodeSearcher against a
// Nominatim-compatible text-search service.
//
// The client is safe for concurrent use.
type NominatimClient struct {
	session   *http.Client
	baseURL   string
	userAgent string
	log       *zap.Logger
}

func NewNominatimClient(baseURL, userAgent string, timeout time.Duration, log *zap.Logger) (*NominatimClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("nominatim base url is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &NominatimClient{
		session:   &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		log:       log,
	}, nil
}

type searchHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// Search resolves a free-text query via /search.
func (n *NominatimClient) Search(ctx context.Context, query string) (_ []ports.GeocodeHit, err error) {
	defer obs.Time(ctx, n.log, "nominatim.Search")(&err)

	q := map[string]string{"format": "json", "q": query, "limit": "1"}
	resp, err := n.get(ctx, "/search", q)
	if err != nil {
		return nil, fmt.Errorf("nominatim search: %w", err)
	}
	defer resp.Body.Close()

	var decoded []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("nominatim search: decode response: %w", err)
	}

	out := make([]ports.GeocodeHit, 0, len(decoded))
	for i, h := range decoded {
		lat, err := strconv.ParseFloat(h.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search: hit %d: invalid lat %q: %w", i, h.Lat, err)
		}
		lng, err := strconv.ParseFloat(h.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim search: hit %d: invalid lon %q: %w", i, h.Lon, err)
		}
		out = append(out, ports.GeocodeHit{Lat: lat, Lng: lng, Label: h.DisplayName})
	}

	return out, nil
}

// Reverse looks up the label for a coordinate via /reverse. An "error"
// member in the body is the service's explicit no-data marker.
func (n *NominatimClient) Reverse(ctx context.Context, lat, lng float64) (_ string, _ bool, err error) {
	defer obs.Time(ctx, n.log, "nominatim.Reverse")(&err)

	q := map[string]string{
		"format": "json",
		"lat":    strconv.FormatFloat(lat, 'f', -1, 64),
		"lon":    strconv.FormatFloat(lng, 'f', -1, 64),
	}
	resp, err := n.get(ctx, "/reverse", q)
	if err != nil {
		return "", false, fmt.Errorf("nominatim reverse: %w", err)
	}
	defer resp.Body.Close()

	var decoded reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", false, fmt.Errorf("nominatim reverse: decode response: %w", err)
	}

	if decoded.Error != "" {
		n.log.Debug("nominatim reported no data",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.String("reason", decoded.Error),
		)
		return "", false, nil
	}

	return decoded.DisplayName, true, nil
}

func (n *NominatimClient) get(ctx context.Context, path string, query map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	// Nominatim's usage policy rejects requests without an identifying agent.
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}

	return resp, nil
}
