package models

import "time"

// WeatherSample is one reading scraped for a location. A nil field means the value
// could not be extracted from the upstream page.
type WeatherSample struct {
	Temperature   *int `json:"temperature"`
	Humidity      *int `json:"humidity"`
	Precipitation *int `json:"precipitation"`
}

// NewSample builds a complete sample. Mostly useful in tests and fixtures.
func NewSample(temperature, humidity, precipitation int) WeatherSample {
	return WeatherSample{
		Temperature:   IntPtr(temperature),
		Humidity:      IntPtr(humidity),
		Precipitation: IntPtr(precipitation),
	}
}

// Complete reports whether all three features are present.
func (s WeatherSample) Complete() bool {
	return s.Temperature != nil && s.Humidity != nil && s.Precipitation != nil
}

// Features returns [temperature, humidity, precipitation]. Callers must check Complete first.
func (s WeatherSample) Features() [3]float64 {
	return [3]float64{
		float64(*s.Temperature),
		float64(*s.Humidity),
		float64(*s.Precipitation),
	}
}

// CacheEntry is the persisted form of a fetched sample.
type CacheEntry struct {
	Location   string        `json:"location,omitempty"`
	CapturedAt time.Time     `json:"timestamp"`
	Sample     WeatherSample `json:"data"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
