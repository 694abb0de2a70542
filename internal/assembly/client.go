package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://open.assembly.go.kr/portal/openapi"
	DefaultAge     = 22

	clientTimeout = 30 * time.Second
	userAgent     = "Mozilla/5.0 (compatible; assemblydigest/1.0)"

	resultOK     = "INFO-000"
	resultNoData = "INFO-200"
)

var (
	// ErrHTMLResponse is returned when the API answers with an HTML page
	// instead of JSON, which it does for maintenance and key errors.
	ErrHTMLResponse = errors.New("unexpected HTML response")
	// ErrNoData is returned for the "no matching data" result code.
	ErrNoData = errors.New("no data")
)

type Config struct {
	BaseURL string
	APIKey  string
	// Age is the Assembly term, e.g. 22.
	Age int
}

// Client talks to the National Assembly open API.
type Client struct {
	baseURL string
	apiKey  string
	age     int
	client  *http.Client
	now     func() time.Time
	log     *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	age := cfg.Age
	if age <= 0 {
		age = DefaultAge
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		age:     age,
		client:  &http.Client{Timeout: clientTimeout},
		now:     time.Now,
		log:     log,
	}
}

// ResultError is a non-OK result code reported by the API.
type ResultError struct {
	Code    string
	Message string
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("result %s: %s", e.Code, e.Message)
}

type page struct {
	total int
	rows  []gjson.Result
}

func (c *Client) fetch(
	ctx context.Context,
	service string,
	params url.Values,
) (page, error) {
	params.Set("KEY", c.apiKey)
	params.Set("Type", "json")

	endpoint := c.baseURL + "/" + service + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return page{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"service", service,
				"operation", "fetch")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return page{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return page{}, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body := strings.TrimSpace(string(raw))
	if strings.HasPrefix(body, "<") {
		return page{}, fmt.Errorf("%w: %s", ErrHTMLResponse, htmlTitle(body))
	}

	return parsePage(body, service)
}

func parsePage(body, service string) (page, error) {
	if !gjson.Valid(body) {
		return page{}, errors.New("parse response: invalid JSON")
	}

	root := gjson.Parse(body)

	// Errors and empty results come without the service envelope.
	if result := root.Get("RESULT"); result.Exists() {
		if err := checkResult(result); err != nil {
			return page{}, err
		}
	}

	envelope := root.Get(service)
	if !envelope.IsArray() {
		return page{}, fmt.Errorf("parse response: %s is missing", service)
	}

	var p page
	for _, part := range envelope.Array() {
		for _, h := range part.Get("head").Array() {
			if total := h.Get("list_total_count"); total.Exists() {
				p.total = int(total.Int())
			}

			if result := h.Get("RESULT"); result.Exists() {
				if err := checkResult(result); err != nil {
					return page{}, err
				}
			}
		}

		p.rows = append(p.rows, part.Get("row").Array()...)
	}

	return p, nil
}

func checkResult(result gjson.Result) error {
	switch code := result.Get("CODE").String(); code {
	case resultOK:
		return nil
	case resultNoData:
		return ErrNoData
	default:
		return &ResultError{Code: code, Message: result.Get("MESSAGE").String()}
	}
}

func htmlTitle(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

func (c *Client) pageParams(pageIndex, pageSize int) url.Values {
	params := url.Values{}
	params.Set("pIndex", strconv.Itoa(pageIndex))
	params.Set("pSize", strconv.Itoa(pageSize))

	return params
}
