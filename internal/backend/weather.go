package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Weather struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Description string  `json:"description"`
	Humidity    int     `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Suggestion  string  `json:"suggestion"`
}

// Summary renders the weather as one sentence suitable for speaking aloud.
func (w Weather) Summary() string {
	text := fmt.Sprintf("%s: %.0f°C, %s. Humidity %d%%, wind %.1f m/s.",
		w.Location, w.Temperature, w.Description, w.Humidity, w.WindSpeed)
	if s := strings.TrimSpace(w.Suggestion); s != "" {
		text += " " + s
	}
	return text
}

func (c *Client) Weather(ctx context.Context, location string) (Weather, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Weather{}, fmt.Errorf("%w: empty weather location", ErrRequestFailed)
	}

	var out Weather
	err := c.do(ctx, http.MethodGet, "/api/weather/", url.Values{"location": {location}}, nil, &out)
	return out, err
}
