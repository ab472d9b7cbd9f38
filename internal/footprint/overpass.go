package footprint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/shademap/shademap/pkg/geo"
)

const defaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// OverpassProvider fetches building footprints from an Overpass API server.
type OverpassProvider struct {
	endpoint string
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewOverpassProvider creates a provider against the given endpoint (empty
// string selects the public overpass-api.de instance). The timeout bounds
// the whole request so a slow server cannot stall a computation.
func NewOverpassProvider(endpoint string, timeout time.Duration, logger *zap.SugaredLogger) *OverpassProvider {
	if endpoint == "" {
		endpoint = defaultOverpassEndpoint
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &OverpassProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []overpassPoint   `json:"geometry"`
}

type overpassPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// QueryFootprints runs an Overpass QL query for building ways inside the
// bounding box. Malformed elements are skipped individually, never aborting
// the whole batch.
func (p *OverpassProvider) QueryFootprints(ctx context.Context, bounds geo.BoundingBox) ([]Footprint, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:25];(way["building"](%.6f,%.6f,%.6f,%.6f););out body geom;`,
		bounds.South, bounds.West, bounds.North, bounds.East)

	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating Overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p.logger.Debugf("querying Overpass for %s", bounds)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying Overpass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Overpass returned %s: %s", resp.Status, string(body))
	}

	var decoded overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding Overpass response: %w", err)
	}

	footprints := make([]Footprint, 0, len(decoded.Elements))
	skipped := 0
	for _, el := range decoded.Elements {
		fp, ok := elementToFootprint(el)
		if !ok {
			skipped++
			continue
		}
		footprints = append(footprints, fp)
	}
	if skipped > 0 {
		p.logger.Debugf("skipped %d malformed Overpass elements", skipped)
	}
	p.logger.Debugf("Overpass returned %d footprints for %s", len(footprints), bounds)
	return footprints, nil
}

func elementToFootprint(el overpassElement) (Footprint, bool) {
	if el.Type != "way" || len(el.Geometry) < 3 {
		return Footprint{}, false
	}

	ring := make(orb.Ring, 0, len(el.Geometry)+1)
	for _, pt := range el.Geometry {
		ring = append(ring, orb.Point{pt.Lon, pt.Lat})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return Footprint{}, false
	}

	fp := Footprint{
		ID:       "way/" + strconv.FormatInt(el.ID, 10),
		Geometry: orb.Polygon{ring},
	}
	if el.Tags != nil {
		fp.Name = el.Tags["name"]
		if t := el.Tags["building"]; t != "" && t != "yes" {
			fp.Type = t
		}
		fp.Height = parseHeightTag(el.Tags["height"])
		if lv, err := strconv.Atoi(strings.TrimSpace(el.Tags["building:levels"])); err == nil && lv > 0 {
			fp.Levels = lv
		}
	}
	return fp, true
}
