package usecase_opportunity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wellworld/core/internal/model"
)

//go:generate mockery --name=Fetcher --output=./mocks/opportunity/fetcher --filename=fetcher.go
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Usecase loads the opportunity catalog once per process. The feed is best
// effort: any fetch/parse/validation failure falls back to the built-in set,
// so callers always get a non-empty, well-formed list.
type Usecase struct {
	fetcher Fetcher
	logger  *slog.Logger

	once   sync.Once
	loaded []model.Opportunity
}

func New(fetcher Fetcher) *Usecase {
	return &Usecase{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
}

func (u *Usecase) Load(ctx context.Context) []model.Opportunity {
	u.once.Do(func() {
		u.loaded = u.load(ctx)
	})
	return u.loaded
}

func (u *Usecase) load(ctx context.Context) []model.Opportunity {
	raw, err := u.fetcher.Fetch(ctx)
	if err != nil {
		u.logger.Warn("opportunity feed unreachable, using fallback", "error", err)
		return fallbackOpportunities()
	}

	entries, err := decodeFeed(raw)
	if err != nil {
		u.logger.Warn("opportunity feed malformed, using fallback", "error", err)
		return fallbackOpportunities()
	}

	opps := make([]model.Opportunity, 0, len(entries))
	for _, entry := range entries {
		opp, ok := normalizeEntry(entry)
		if !ok {
			continue
		}
		opps = append(opps, opp)
	}

	if len(opps) == 0 {
		u.logger.Warn("opportunity feed yielded no valid records, using fallback")
		return fallbackOpportunities()
	}

	return opps
}

// decodeFeed accepts either a flat JSON array or {"opportunities": [...]}.
func decodeFeed(raw []byte) ([]map[string]any, error) {
	var flat []map[string]any
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var wrapped struct {
		Opportunities []map[string]any `json:"opportunities"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("feed is neither a list nor a wrapped list: %w", err)
	}
	return wrapped.Opportunities, nil
}

// normalizeEntry maps one heterogeneous feed record onto the model. Records
// without a numeric coordinate pair or a country label are dropped.
func normalizeEntry(entry map[string]any) (model.Opportunity, bool) {
	lat, lng, ok := coordinates(entry)
	if !ok {
		return model.Opportunity{}, false
	}

	country, ok := stringField(entry, "country", "nation")
	if !ok || country == "" {
		return model.Opportunity{}, false
	}

	name, _ := stringField(entry, "name", "title")
	link, _ := stringField(entry, "link", "url")

	id, ok := stringField(entry, "id")
	if !ok || id == "" {
		id = stableID(name, lat, lng)
	}

	return model.Opportunity{
		ID:      id,
		Lat:     lat,
		Lng:     lng,
		Name:    name,
		Link:    link,
		Country: country,
	}, true
}

func coordinates(entry map[string]any) (float64, float64, bool) {
	if raw, ok := entry["latlon"]; ok {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return 0, 0, false
		}
		lat, okLat := pair[0].(float64)
		lng, okLng := pair[1].(float64)
		if !okLat || !okLng {
			return 0, 0, false
		}
		return lat, lng, true
	}

	lat, okLat := numberField(entry, "lat", "latitude")
	lng, okLng := numberField(entry, "lng", "lon", "longitude")
	if !okLat || !okLng {
		return 0, 0, false
	}
	return lat, lng, true
}

func numberField(entry map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if raw, ok := entry[key]; ok {
			n, ok := raw.(float64)
			return n, ok
		}
	}
	return 0, false
}

func stringField(entry map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if raw, ok := entry[key]; ok {
			s, ok := raw.(string)
			return s, ok
		}
	}
	return "", false
}

func stableID(name string, lat, lng float64) string {
	key := fmt.Sprintf("%s:%f:%f", name, lat, lng)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func fallbackOpportunities() []model.Opportunity {
	opps := []model.Opportunity{
		{Lat: 35.6897, Lng: 139.6922, Name: "Community garden build", Link: "https://www.idealist.org/en/volunteer-opportunity/tokyo-garden", Country: "japan"},
		{Lat: -1.2833, Lng: 36.8167, Name: "Wildlife conservation assistant", Link: "https://www.idealist.org/en/volunteer-opportunity/nairobi-wildlife", Country: "kenya"},
		{Lat: 40.7128, Lng: -74.006, Name: "Food bank support", Link: "https://www.idealist.org/en/volunteer-opportunity/nyc-foodbank", Country: "united states"},
		{Lat: 34.0522, Lng: -118.2437, Name: "Beach cleanup crew", Link: "https://www.idealist.org/en/volunteer-opportunity/la-beach", Country: "united states"},
		{Lat: 51.5072, Lng: -0.1276, Name: "Youth mentoring programme", Link: "https://www.idealist.org/en/volunteer-opportunity/london-mentoring", Country: "united kingdom"},
		{Lat: -13.1631, Lng: -72.545, Name: "Trail restoration project", Link: "https://www.idealist.org/en/volunteer-opportunity/cusco-trails", Country: "peru"},
		{Lat: 27.7172, Lng: 85.324, Name: "School rebuilding effort", Link: "https://www.idealist.org/en/volunteer-opportunity/kathmandu-school", Country: "nepal"},
		{Lat: 9.7489, Lng: -83.7534, Name: "Rainforest monitoring", Link: "https://www.idealist.org/en/volunteer-opportunity/costarica-forest", Country: "costa rica"},
	}
	for i := range opps {
		opps[i].ID = stableID(opps[i].Name, opps[i].Lat, opps[i].Lng)
	}
	return opps
}
