package nextbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nextbus-tracker/internal/track"
)

// DefaultBaseURL is the public XML feed endpoint.
const DefaultBaseURL = "http://webservices.nextbus.com/service/publicXMLFeed"

const kmhToMPH = 0.621371

// Fatal configuration outcomes: an unknown agency/route answers with an empty
// document rather than an error, and must not be mistaken for "no vehicles".
var (
	ErrNoStops      = errors.New("route config has no stops")
	ErrNoDirections = errors.New("route config has no direction entries")
)

// FetchError wraps a failure to obtain or decode feed data. Retryable
// failures are retried by the poller; non-retryable ones end the run.
type FetchError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether err is a FetchError worth retrying.
func Retryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable
}

// Client fetches route configuration and vehicle locations for one
// (agency, route) from a NextBus-style XML feed. Request timeouts live here;
// the tracking core never owns network deadlines.
type Client struct {
	http    *http.Client
	baseURL string
	agency  string
	route   string

	// lastTime from the previous vehicleLocations response, echoed back as
	// the t parameter for incremental fetches.
	lastTime int64

	now func() time.Time
}

func NewClient(baseURL, agency, route string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		agency:  agency,
		route:   route,
		now:     time.Now,
	}
}

// RouteConfig fetches and decodes the stop set for the route. The returned
// slice order is the feed document order, which is also the resolver's
// tie-break order.
func (c *Client) RouteConfig(ctx context.Context) ([]track.Stop, error) {
	body, err := c.get(ctx, "routeConfig", url.Values{
		"a": {c.agency},
		"r": {c.route},
	})
	if err != nil {
		return nil, err
	}
	stops, err := parseRouteConfig(body)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FetchError{Op: "routeConfig decode", Retryable: true, Err: err}
	}
	return stops, nil
}

// VehicleLocations fetches one poll cycle of snapshots. skipped counts
// vehicle elements dropped for missing required attributes.
func (c *Client) VehicleLocations(ctx context.Context) (snaps []track.VehicleSnapshot, skipped int, err error) {
	body, err := c.get(ctx, "vehicleLocations", url.Values{
		"a": {c.agency},
		"r": {c.route},
		"t": {fmt.Sprintf("%d", c.lastTime)},
	})
	if err != nil {
		return nil, 0, err
	}
	snaps, skipped, lastTime, err := parseVehicleLocations(body, c.now())
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, 0, err
		}
		return nil, 0, &FetchError{Op: "vehicleLocations decode", Retryable: true, Err: err}
	}
	if lastTime > 0 {
		c.lastTime = lastTime
	}
	return snaps, skipped, nil
}

func (c *Client) get(ctx context.Context, command string, params url.Values) ([]byte, error) {
	params.Set("command", command)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Op: command, Retryable: false, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Op: command, Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Op:        command,
			Retryable: resp.StatusCode >= 500,
			Err:       fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Op: command, Retryable: true, Err: err}
	}
	return body, nil
}
