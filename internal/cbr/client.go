package cbr

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"orders_sync/internal/orders"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultURL = "https://www.cbr.ru/scripts/XML_daily.asp"
	// USD is the feed's identifier for the US dollar.
	USD = "R01235"

	requestDateLayout = "02/01/2006"
	feedDateLayout    = "02.01.2006"
)

type Client struct {
	baseURL      string
	currencyID   string
	maxAge       time.Duration
	client       *http.Client
	now          func() time.Time
	apiCallCount int64
	apiCallMutex sync.Mutex
	lastRate     decimal.Decimal
}

type Option func(*Client)

// WithHTTPClient replaces the default client with its 10 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithClock sets the function used to determine "today".
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// ValCurs is the root element of the daily feed.
type ValCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Date    string   `xml:"Date,attr"`
	Name    string   `xml:"name,attr"`
	Valutes []Valute `xml:"Valute"`
}

type Valute struct {
	ID       string `xml:"ID,attr"`
	NumCode  string `xml:"NumCode"`
	CharCode string `xml:"CharCode"`
	Nominal  string `xml:"Nominal"`
	Name     string `xml:"Name"`
	Value    string `xml:"Value"`
}

// NewClient returns a client for the feed at baseURL. A non-positive maxAge
// disables the check on how old the published rate may be.
func NewClient(baseURL, currencyID string, maxAge time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		currencyID: currencyID,
		maxAge:     maxAge,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

// LastRate returns the rate from the most recent successful fetch, or zero.
func (c *Client) LastRate() decimal.Decimal {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.lastRate
}

// GetRate fetches today's rate for the configured currency. Every failure
// wraps orders.ErrRateUnavailable.
func (c *Client) GetRate(ctx context.Context) (decimal.Decimal, error) {
	today := c.now()
	curs, err := c.fetch(ctx, today)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", orders.ErrRateUnavailable, err)
	}

	if err := c.checkAge(curs.Date, today); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", orders.ErrRateUnavailable, err)
	}

	rate, err := c.extractRate(curs)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", orders.ErrRateUnavailable, err)
	}

	c.apiCallMutex.Lock()
	c.lastRate = rate
	c.apiCallMutex.Unlock()

	log.Debug().
		Str("currency_id", c.currencyID).
		Str("feed_date", curs.Date).
		Str("rate", rate.String()).
		Msg("Retrieved exchange rate")
	return rate, nil
}

func (c *Client) fetch(ctx context.Context, day time.Time) (*ValCurs, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url: %w", err)
	}
	q := u.Query()
	q.Set("date_req", day.Format(requestDateLayout))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Increment API call counter
	c.IncrementAPICall()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return decodeFeed(resp.Body)
}

func decodeFeed(r io.Reader) (*ValCurs, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var curs ValCurs
	if err := dec.Decode(&curs); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}
	return &curs, nil
}

// The feed declares windows-1251, which encoding/xml does not handle itself.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	case "utf-8", "utf8", "":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported charset %q", label)
}

func (c *Client) checkAge(feedDate string, today time.Time) error {
	if c.maxAge <= 0 {
		return nil
	}
	published, err := time.Parse(feedDateLayout, strings.TrimSpace(feedDate))
	if err != nil {
		return fmt.Errorf("invalid feed date %q", feedDate)
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if age := day.Sub(published); age > c.maxAge {
		return fmt.Errorf("latest published rate is from %s, older than %s", feedDate, c.maxAge)
	}
	return nil
}

func (c *Client) extractRate(curs *ValCurs) (decimal.Decimal, error) {
	for _, v := range curs.Valutes {
		if v.ID != c.currencyID {
			continue
		}
		value, err := orders.ParseDecimal(v.Value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("malformed value for %s: %v", c.currencyID, err)
		}
		nominal := decimal.NewFromInt(1)
		if strings.TrimSpace(v.Nominal) != "" {
			nominal, err = orders.ParseDecimal(v.Nominal)
			if err != nil || !nominal.IsPositive() {
				return decimal.Zero, fmt.Errorf("malformed nominal %q for %s", v.Nominal, c.currencyID)
			}
		}
		rate := value.Div(nominal)
		if !rate.IsPositive() {
			return decimal.Zero, fmt.Errorf("non-positive rate %s for %s", rate, c.currencyID)
		}
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("currency %s not published for %s", c.currencyID, curs.Date)
}
