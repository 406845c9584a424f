package routing

import (
	"context"
	"distance-matrix-service/internal/domain"
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

// OSRMProvider implements ports.RouteProvider for one OSRM-compatible
// /route endpoint, e.g. https://router.project-osrm.org/route/v1/driving.
//
// It performs exactly one request per call; retry and fallback policy
// belong to the caller. The provider is safe for concurrent use.
type OSRMProvider struct {
	session *http.Client
	baseURL string
	log     *zap.Logger
}

func NewOSRMProvider(baseURL string, timeout time.Duration, log *zap.Logger) (*OSRMProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("OSRM base url is empty")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &OSRMProvider{
		session: &http.Client{Timeout: timeout},
		baseURL: baseURL,
		log:     log,
	}, nil
}

// NewOSRMProviders builds one provider per endpoint, preserving order.
func NewOSRMProviders(endpoints []string, timeout time.Duration, log *zap.Logger) ([]ports.RouteProvider, error) {
	out := make([]ports.RouteProvider, 0, len(endpoints))
	for _, e := range endpoints {
		p, err := NewOSRMProvider(e, timeout, log)
		if err != nil {
			return nil, fmt.Errorf("OSRM provider %q: %w", e, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (o *OSRMProvider) Name() string { return o.baseURL }

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route requests the full road geometry between two coordinates.
func (o *OSRMProvider) Route(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ domain.RouteFragment, err error) {
	defer obs.Time(ctx, o.log, "osrm.Route")(&err)

	endpoint := fmt.Sprintf("%s/%s;%s", o.baseURL, lngLat(from), lngLat(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.RouteFragment{}, fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("overview", "full")
	q.Set("geometries", "geojson")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := o.session.Do(req)
	if err != nil {
		return domain.RouteFragment{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.RouteFragment{}, &ports.StatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.RouteFragment{}, fmt.Errorf("decode route response: %w", err)
	}

	switch {
	case decoded.Code == "Ok" && len(decoded.Routes) > 0:
	case decoded.Code == "NoRoute":
		return domain.RouteFragment{}, ports.ErrNoRoute
	default:
		return domain.RouteFragment{}, &ports.APICodeError{Code: decoded.Code}
	}

	route := decoded.Routes[0]

	// OSRM geometry is [lng, lat]; paths are kept as (lat, lng).
	path := make([]domain.LatLng, 0, len(route.Geometry.Coordinates))
	for i, c := range route.Geometry.Coordinates {
		if len(c) < 2 {
			return domain.RouteFragment{}, fmt.Errorf("decode route response: geometry vertex %d has %d values", i, len(c))
		}
		path = append(path, domain.LatLng{c[1], c[0]})
	}

	return domain.RouteFragment{
		Distance: domain.RoundTo(route.Distance/1000, 2),
		Path:     path,
		IsRoad:   true,
	}, nil
}

func lngLat(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}
