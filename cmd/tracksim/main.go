// Command tracksim drives a booking's live tracking from the command line.
// It walks a straight line between two points and posts each fix the way the
// musician's device would.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/joshua-takyi/gigbay/internal/geo"
	"github.com/joshua-takyi/gigbay/internal/services"
	"github.com/joshua-takyi/gigbay/internal/tracking"
)

// route yields evenly spaced points from start to end and then stays put.
type route struct {
	mu    sync.Mutex
	from  geo.Point
	to    geo.Point
	steps int
	step  int
}

func (r *route) CurrentLocation(context.Context) (tracking.Fix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := float64(r.step) / float64(r.steps)
	if r.step < r.steps {
		r.step++
	}
	accuracy := 8.0
	return tracking.Fix{
		Point: geo.Point{
			Lat: r.from.Lat + (r.to.Lat-r.from.Lat)*f,
			Lng: r.from.Lng + (r.to.Lng-r.from.Lng)*f,
		},
		Accuracy: &accuracy,
		At:       time.Now().UTC(),
	}, nil
}

func parsePoint(s string) (geo.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("want lat,lng, got %q", s)
	}
	var p geo.Point
	var err error
	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return geo.Point{}, err
	}
	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return geo.Point{}, err
	}
	return p, p.Validate()
}

type apiClient struct {
	http    *http.Client
	baseURL string
	token   string
}

func (c *apiClient) postLocation(ctx context.Context, bookingID uuid.UUID, fix tracking.Fix) error {
	body, err := json.Marshal(services.LocationInput{
		Latitude:  fix.Point.Lat,
		Longitude: fix.Point.Lng,
		Accuracy:  fix.Accuracy,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/tracking/%s/location", c.baseURL, bookingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var out struct {
		Success bool                    `json:"success"`
		Error   string                  `json:"error"`
		Data    services.LocationResult `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("status %d: %w", res.StatusCode, err)
	}
	if !out.Success {
		return fmt.Errorf("status %d: %s", res.StatusCode, out.Error)
	}

	args := []any{"lat", fix.Point.Lat, "lng", fix.Point.Lng}
	if out.Data.DistanceKm != nil {
		args = append(args, "distance_km", *out.Data.DistanceKm)
	}
	for _, a := range out.Data.Alerts {
		args = append(args, "alert", a.Kind)
	}
	slog.Info("location sent", args...)
	return nil
}

func (c *apiClient) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return false
	}
	res, err := c.http.Do(req)
	if err != nil {
		return false
	}
	res.Body.Close()
	return res.StatusCode == http.StatusOK
}

func main() {
	baseURL := flag.String("api", "http://localhost:8080", "API base URL")
	booking := flag.String("booking", "", "booking id to track")
	token := flag.String("token", os.Getenv("GIGBAY_TOKEN"), "access token of the musician")
	from := flag.String("from", "6.4541,3.3947", "start point as lat,lng")
	to := flag.String("to", "6.4281,3.4219", "destination as lat,lng")
	steps := flag.Int("steps", 30, "fixes between start and destination")
	interval := flag.Duration("interval", tracking.DefaultPollInterval, "time between fixes")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	bookingID, err := uuid.Parse(*booking)
	if err != nil {
		logger.Error("--booking must be a booking id", "error", err)
		os.Exit(2)
	}
	start, err := parsePoint(*from)
	if err != nil {
		logger.Error("invalid --from", "error", err)
		os.Exit(2)
	}
	end, err := parsePoint(*to)
	if err != nil {
		logger.Error("invalid --to", "error", err)
		os.Exit(2)
	}
	if *steps < 1 {
		*steps = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &apiClient{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(*baseURL, "/"),
		token:   *token,
	}
	poller := tracking.NewPoller(
		&route{from: start, to: end, steps: *steps},
		func(ctx context.Context, fix tracking.Fix) error {
			return client.postLocation(ctx, bookingID, fix)
		},
		tracking.WithInterval(*interval),
		tracking.WithLogger(logger),
	)

	// bring a suspended poller back once the API answers again
	go func() {
		t := time.NewTicker(3 * *interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if poller.Suspended() && client.healthy(ctx) {
					logger.Info("API reachable again, resuming")
					poller.Resume()
				}
			}
		}
	}()

	logger.Info("tracking started", "booking", bookingID, "distance_km", geo.Distance(start, end))
	if err := poller.Run(ctx); err != nil {
		logger.Error("poller stopped", "error", err)
		os.Exit(1)
	}
}
