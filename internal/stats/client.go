// Package stats fetches race results for the stats-lookup intent.
//
// Results come from an Ergast-compatible REST API. Past race results never
// change, so responses are cached client-side; the API is public and
// rate-limited, so requests go through a limiter.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/paddockd/internal/config"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

var (
	// ErrUnavailable indicates the results API failed or timed out.
	ErrUnavailable = errors.New("results source unavailable")

	// ErrRaceNotFound indicates no race matched the requested year and name.
	ErrRaceNotFound = errors.New("race not found")
)

// Result is one classified finisher.
type Result struct {
	Position    string
	Driver      string
	Constructor string
	Points      string
}

// RaceResults is the classification of one grand prix.
type RaceResults struct {
	Season   string
	RaceName string
	Results  []Result
}

// Client queries the results API.
type Client struct {
	baseURL    string
	topK       int
	httpClient *http.Client
	cache      *gocache.Cache
	limiter    *rate.Limiter
}

// NewClient creates a stats client.
func NewClient(cfg config.StatsConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	topK := cfg.TopK
	if topK < 1 {
		topK = 10
	}
	ttl := cfg.CacheTTL.Duration()
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		topK:       topK,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      gocache.New(ttl, 2*ttl),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}, nil
}

// Lookup fetches the top finishers for a grand prix and renders them as
// context text for answer synthesis. grandPrix matches against the race
// name, case-insensitively ("bahrain" matches "Bahrain Grand Prix").
func (c *Client) Lookup(ctx context.Context, year int, grandPrix string) (string, error) {
	if year < 1950 {
		return "", fmt.Errorf("%w: season %d", ErrRaceNotFound, year)
	}
	if grandPrix == "" {
		return "", fmt.Errorf("%w: no grand prix named in query", ErrRaceNotFound)
	}

	key := fmt.Sprintf("%d/%s", year, strings.ToLower(grandPrix))
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string), nil
	}

	round, raceName, err := c.findRound(ctx, year, grandPrix)
	if err != nil {
		return "", err
	}

	race, err := c.fetchResults(ctx, year, round)
	if err != nil {
		return "", err
	}
	race.RaceName = raceName

	rendered := render(race, c.topK)
	c.cache.SetDefault(key, rendered)
	return rendered, nil
}

// findRound resolves a grand prix name to its round number in the season.
func (c *Client) findRound(ctx context.Context, year int, grandPrix string) (round, raceName string, err error) {
	var schedule ergastResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%d.json", c.baseURL, year), &schedule); err != nil {
		return "", "", err
	}

	needle := strings.ToLower(grandPrix)
	for _, race := range schedule.MRData.RaceTable.Races {
		if strings.Contains(strings.ToLower(race.RaceName), needle) {
			return race.Round, race.RaceName, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q in season %d", ErrRaceNotFound, grandPrix, year)
}

// fetchResults loads the classification for one round.
func (c *Client) fetchResults(ctx context.Context, year int, round string) (*RaceResults, error) {
	var resp ergastResponse
	url := fmt.Sprintf("%s/%d/%s/results.json", c.baseURL, year, round)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	races := resp.MRData.RaceTable.Races
	if len(races) == 0 || len(races[0].Results) == 0 {
		return nil, fmt.Errorf("%w: no classification for round %s of %d", ErrRaceNotFound, round, year)
	}

	race := &RaceResults{Season: resp.MRData.RaceTable.Season, RaceName: races[0].RaceName}
	for _, r := range races[0].Results {
		race.Results = append(race.Results, Result{
			Position:    r.Position,
			Driver:      strings.TrimSpace(r.Driver.GivenName + " " + r.Driver.FamilyName),
			Constructor: r.Constructor.Name,
			Points:      r.Points,
		})
	}
	return race, nil
}

// getJSON performs a rate-limited GET and decodes the body.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d from %s", ErrUnavailable, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}

// render formats the top finishers as context text.
func render(race *RaceResults, topK int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Race results for the %s %s:\n", race.Season, race.RaceName)
	b.WriteString("| Position | Driver | Constructor | Points |\n")
	b.WriteString("|---|---|---|---|\n")
	n := len(race.Results)
	if n > topK {
		n = topK
	}
	for _, r := range race.Results[:n] {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", r.Position, r.Driver, r.Constructor, r.Points)
	}
	return b.String()
}

// ergastResponse mirrors the slice of the Ergast payload we read.
type ergastResponse struct {
	MRData struct {
		RaceTable struct {
			Season string `json:"season"`
			Races  []struct {
				Round    string `json:"round"`
				RaceName string `json:"raceName"`
				Results  []struct {
					Position string `json:"position"`
					Points   string `json:"points"`
					Driver   struct {
						GivenName  string `json:"givenName"`
						FamilyName string `json:"familyName"`
					} `json:"Driver"`
					Constructor struct {
						Name string `json:"name"`
					} `json:"Constructor"`
				} `json:"Results"`
			} `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}
