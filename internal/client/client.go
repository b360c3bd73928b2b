package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/disaster-alert/internal/models"
	"github.com/kjstillabower/disaster-alert/internal/observability"
)

// WeatherClient fetches a live sample for a location. No caching, no retries.
type WeatherClient interface {
	FetchSample(ctx context.Context, location string) (models.WeatherSample, error)
}

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrParse            = errors.New("parse page")
)

// LocationPlaceholder is replaced in the source URL template by the escaped, lower-cased location.
const LocationPlaceholder = "{location}"

const (
	temperatureClass = "-bold -gray-dark-2 -font-55 _margin-l-20 _center"
	humiditySelector = `span[data-element="humidity"]`
	rainfallSelector = `span[data-element="rainfall"]`
	maxPageBytes     = 4 << 20
)

// ScrapeClient reads current conditions from the weather site's HTML page.
type ScrapeClient struct {
	urlTemplate string
	userAgent   string
	timeout     time.Duration
	client      *http.Client
	limiter     *rate.Limiter
}

// NewScrapeClient builds a client for urlTemplate. rps > 0 spaces outbound requests; 0 disables the limiter.
func NewScrapeClient(urlTemplate, userAgent string, timeout time.Duration, rps float64) (*ScrapeClient, error) {
	if !strings.Contains(urlTemplate, LocationPlaceholder) {
		return nil, fmt.Errorf("source URL %q must contain %s", urlTemplate, LocationPlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(urlTemplate, LocationPlaceholder, "x")); err != nil {
		return nil, fmt.Errorf("invalid source URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &ScrapeClient{
		urlTemplate: urlTemplate,
		userAgent:   userAgent,
		timeout:     timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c, nil
}

// PageURL returns the page address for location.
func (c *ScrapeClient) PageURL(location string) string {
	return strings.ReplaceAll(c.urlTemplate, LocationPlaceholder, url.PathEscape(strings.ToLower(location)))
}

// FetchSample performs one GET for location and extracts the three features from the page.
// Missing markup yields nil fields, never an error.
func (c *ScrapeClient) FetchSample(ctx context.Context, location string) (models.WeatherSample, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.WeatherSample{}, fmt.Errorf("wait for scrape slot: %w", err)
		}
	}

	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		observability.ScrapeCallsTotal.WithLabelValues("error").Inc()
		return models.WeatherSample{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ScrapeCallsTotal.WithLabelValues("error").Inc()
		observability.ScrapeDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherSample{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.WeatherSample{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ScrapeCallsTotal.WithLabelValues(status).Inc()
	observability.ScrapeDuration.WithLabelValues(status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return models.WeatherSample{}, err
	}

	return ParseWeatherPage(io.LimitReader(resp.Body, maxPageBytes))
}

func (c *ScrapeClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(location), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// ParseWeatherPage extracts temperature, humidity and precipitation from an HTML document.
func ParseWeatherPage(r io.Reader) (models.WeatherSample, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return models.WeatherSample{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	temperature := doc.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return class == temperatureClass
	}).First()

	return models.WeatherSample{
		Temperature:   numberFrom(temperature),
		Humidity:      numberFrom(doc.Find(humiditySelector).First()),
		Precipitation: numberFrom(doc.Find(rainfallSelector).First()),
	}, nil
}

func numberFrom(s *goquery.Selection) *int {
	if s.Length() == 0 {
		return nil
	}
	return ExtractNumber(s.Text())
}

// ExtractNumber concatenates every ASCII digit in text and parses the result.
// Signs and decimal points are dropped: "25°C" is 25, "1 2" is 12, "-3.5" is 35.
// Returns nil when text has no digits or the digits overflow an int.
func ExtractNumber(text string) *int {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] >= '0' && text[i] <= '9' {
			b.WriteByte(text[i])
		}
	}
	if b.Len() == 0 {
		return nil
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return nil
	}
	return &n
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
