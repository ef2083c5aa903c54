package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/model"
)

// PlayerConfig is the configuration of the scenario player.
type PlayerConfig struct {
	// APIURL is the base URL of the DaCirco API, e.g. http://127.0.0.1:9000.
	APIURL string
	Client *http.Client
	Logger log.Logger
}

func (c *PlayerConfig) defaults() error {
	if c.APIURL == "" {
		return fmt.Errorf("the API URL is required")
	}

	if c.Client == nil {
		c.Client = http.DefaultClient
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"service": "scenario.Player"})

	return nil
}

// Player replays a scenario against a running DaCirco API. Every request is
// fired at its own offset, concurrently with the others, like a set of
// independent users would.
type Player struct {
	cfg PlayerConfig
}

// NewPlayer returns a scenario player.
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	err := cfg.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Player{cfg: cfg}, nil
}

// Play fires all the requests of the scenario and waits for the last one to
// be answered. It fails if any request could not be submitted.
func (p *Player) Play(ctx context.Context, scenario Scenario) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(scenario))

	for _, step := range scenario {
		step := step
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case <-time.After(step.At):
			}

			err := p.requestJob(ctx, step.Request)
			if err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Player) requestJob(ctx context.Context, req model.TranscodeRequest) error {
	p.cfg.Logger.WithCtxValues(ctx).Infof("Requesting transcode of %s", req.VideoID)

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.cfg.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("could not submit request for %s: %w", req.VideoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("request for %s rejected with status %d", req.VideoID, resp.StatusCode)
	}

	return nil
}
