package feeds

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

type WeatherToday struct {
	Min string `json:"min"`
	Max string `json:"max"`
	UV  string `json:"uv"`
}

// WeatherReport is the normalized wttr.in payload the dashboard widget reads.
type WeatherReport struct {
	Temp      string            `json:"temp"`
	Text      string            `json:"text"`
	City      string            `json:"city"`
	Humidity  string            `json:"humidity"`
	WindDir   string            `json:"windDir"`
	WindSpeed string            `json:"windSpeed"`
	FeelsLike string            `json:"feelsLike"`
	Today     *WeatherToday     `json:"today"`
	Forecast  []json.RawMessage `json:"forecast"`
}

type valueList []struct {
	Value string `json:"value"`
}

func (v valueList) first() string {
	if len(v) == 0 {
		return ""
	}
	return v[0].Value
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC          string    `json:"temp_C"`
		FeelsLikeC     string    `json:"FeelsLikeC"`
		Humidity       string    `json:"humidity"`
		WindDir16Point string    `json:"winddir16Point"`
		WindSpeedKmph  string    `json:"windspeedKmph"`
		WeatherDesc    valueList `json:"weatherDesc"`
		LangZh         valueList `json:"lang_zh"`
	} `json:"current_condition"`
	Weather []json.RawMessage `json:"weather"`
}

type wttrDay struct {
	MinTempC string `json:"mintempC"`
	MaxTempC string `json:"maxtempC"`
	UVIndex  string `json:"uvIndex"`
}

// Weather fetches current conditions and the forecast for city.
func (s *Service) Weather(ctx context.Context, city string) (*WeatherReport, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrMissingCity
	}

	ctx, cancel := s.withTimeout(ctx, s.cfg.FeedTimeout)
	defer cancel()

	endpoint := strings.TrimRight(s.cfg.WeatherBaseURL, "/") + "/" + url.PathEscape(city) + "?format=j1&lang=zh"

	var report *WeatherReport
	err := s.guard("weather", "weather", func() error {
		body, err := s.get(ctx, endpoint, nil)
		if err != nil {
			return err
		}
		report, err = decodeWeather(body, city)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func decodeWeather(body []byte, city string) (*WeatherReport, error) {
	var resp wttrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	if len(resp.CurrentCondition) == 0 {
		return nil, fmt.Errorf("weather response has no current condition")
	}

	cur := resp.CurrentCondition[0]
	text := cur.LangZh.first()
	if text == "" {
		text = cur.WeatherDesc.first()
	}

	report := &WeatherReport{
		Temp:      cur.TempC,
		Text:      text,
		City:      city,
		Humidity:  cur.Humidity,
		WindDir:   cur.WindDir16Point,
		WindSpeed: cur.WindSpeedKmph,
		FeelsLike: cur.FeelsLikeC,
		Forecast:  resp.Weather,
	}
	if report.Forecast == nil {
		report.Forecast = []json.RawMessage{}
	}
	if len(resp.Weather) > 0 {
		var day wttrDay
		if err := json.Unmarshal(resp.Weather[0], &day); err == nil {
			report.Today = &WeatherToday{Min: day.MinTempC, Max: day.MaxTempC, UV: day.UVIndex}
		}
	}
	return report, nil
}
