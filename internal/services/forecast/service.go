package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults target Syracuse, NY
const (
	defaultLatitude  = 43.05
	defaultLongitude = -76.15
	defaultDays      = 5
	defaultBaseURL   = "https://api.open-meteo.com/v1/forecast"
)

// Prediction is one day of the snow outlook
type Prediction struct {
	Date        string `json:"date"`
	Probability int    `json:"probability"`
	Reason      string `json:"reason"`
}

// Reasoner is the external generation collaborator that writes the
// per-day commentary. Satisfied by bot.Service.
type Reasoner interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for the forecast service
type Config struct {
	Latitude  float64
	Longitude float64
	Days      int
	BaseURL   string
	Timeout   time.Duration
}

// DefaultConfig returns default forecast configuration
func DefaultConfig() Config {
	return Config{
		Latitude:  defaultLatitude,
		Longitude: defaultLongitude,
		Days:      defaultDays,
		BaseURL:   defaultBaseURL,
		Timeout:   10 * time.Second,
	}
}

// Service produces the snow outlook from a weather fetch plus an
// optional generation call. Both collaborators are opaque; any failure
// is returned to the caller as-is.
type Service struct {
	cfg        Config
	httpClient *http.Client
	reasoner   Reasoner // nil disables generated commentary
	logger     *slog.Logger
}

// New creates a forecast service. reasoner may be nil.
func New(cfg Config, reasoner Reasoner, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Latitude == 0 && cfg.Longitude == 0 {
		cfg.Latitude = def.Latitude
		cfg.Longitude = def.Longitude
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		reasoner:   reasoner,
		logger:     logger.With(slog.String("component", "forecast")),
	}
}

// weatherResponse is the subset of the Open-Meteo payload we consume
type weatherResponse struct {
	Daily struct {
		Time                        []string  `json:"time"`
		SnowfallSum                 []float64 `json:"snowfall_sum"`
		PrecipitationProbabilityMax []int     `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// Predict returns one Prediction per forecast day
func (s *Service) Predict(ctx context.Context) ([]Prediction, error) {
	weather, err := s.fetchWeather(ctx)
	if err != nil {
		return nil, fmt.Errorf("weather fetch: %w", err)
	}

	days := len(weather.Daily.Time)
	if days > s.cfg.Days {
		days = s.cfg.Days
	}

	predictions := make([]Prediction, 0, days)
	for i := 0; i < days; i++ {
		probability := 0
		if i < len(weather.Daily.PrecipitationProbabilityMax) {
			probability = weather.Daily.PrecipitationProbabilityMax[i]
		}
		snowfall := 0.0
		if i < len(weather.Daily.SnowfallSum) {
			snowfall = weather.Daily.SnowfallSum[i]
		}
		if snowfall <= 0 {
			probability = 0
		}
		predictions = append(predictions, Prediction{
			Date:        weather.Daily.Time[i],
			Probability: probability,
			Reason:      fmt.Sprintf("Forecast snowfall %.1f cm.", snowfall),
		})
	}

	if s.reasoner != nil {
		if err := s.applyReasons(ctx, predictions, weather); err != nil {
			return nil, fmt.Errorf("reason generation: %w", err)
		}
	}

	return predictions, nil
}

func (s *Service) fetchWeather(ctx context.Context) (*weatherResponse, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", s.cfg.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", s.cfg.Longitude))
	q.Set("daily", "snowfall_sum,precipitation_probability_max")
	q.Set("forecast_days", fmt.Sprintf("%d", s.cfg.Days))
	q.Set("timezone", "America/New_York")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API status %d", resp.StatusCode)
	}

	var weather weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&weather); err != nil {
		return nil, err
	}
	return &weather, nil
}

// applyReasons replaces the template reasons with generated one-liners,
// one semicolon-separated line per day
func (s *Service) applyReasons(ctx context.Context, predictions []Prediction, weather *weatherResponse) error {
	var b strings.Builder
	b.WriteString("Write a one-line snow outlook for each of these days in Syracuse, NY, ")
	b.WriteString("separated by semicolons, in order, with no other text:")
	for i, p := range predictions {
		snowfall := 0.0
		if i < len(weather.Daily.SnowfallSum) {
			snowfall = weather.Daily.SnowfallSum[i]
		}
		fmt.Fprintf(&b, " %s (snowfall %.1f cm, precipitation probability %d%%);", p.Date, snowfall, p.Probability)
	}

	reply, err := s.reasoner.Reply(ctx, b.String())
	if err != nil {
		return err
	}

	lines := strings.Split(reply, ";")
	for i := range predictions {
		if i < len(lines) {
			if line := strings.TrimSpace(lines[i]); line != "" {
				predictions[i].Reason = line
			}
		}
	}
	return nil
}
