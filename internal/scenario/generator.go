package scenario

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/dacirco/dacirco/internal/model"
)

// GeneratorConfig tunes the random scenario generator.
type GeneratorConfig struct {
	// Movies are the source video names requests are picked from.
	Movies []string
	// MaxDelay bounds the delay between two consecutive requests.
	MaxDelay time.Duration
	// Rand is the randomness source, defaults to a time seeded one.
	Rand *rand.Rand
}

func (c *GeneratorConfig) defaults() error {
	if len(c.Movies) == 0 {
		return fmt.Errorf("at least one movie is required")
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}

	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return nil
}

var speeds = []string{model.SpeedUltrafast, model.SpeedFast}

// Generate creates a random scenario of n requests.
func Generate(n int, config GeneratorConfig) (Scenario, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	scenario := make(Scenario, 0, n)
	offset := time.Duration(0)
	for i := 0; i < n; i++ {
		offset += time.Duration(config.Rand.Int63n(int64(config.MaxDelay)))
		scenario = append(scenario, Step{
			At: offset,
			Request: model.TranscodeRequest{
				VideoID: config.Movies[config.Rand.Intn(len(config.Movies))],
				Bitrate: model.MinBitrate + config.Rand.Intn(model.MaxBitrate-model.MinBitrate+1),
				Speed:   speeds[config.Rand.Intn(len(speeds))],
			},
		})
	}

	return scenario, nil
}

// WriteCSV renders a scenario in the CSV format LoadCSV understands, so
// generated scenarios can be replayed.
func WriteCSV(w io.Writer, scenario Scenario) error {
	var sb strings.Builder
	sb.WriteString("# delay,movie,bitrate,preset\n")

	prev := time.Duration(0)
	for _, step := range scenario {
		delay := step.At - prev
		prev = step.At
		fmt.Fprintf(&sb, "%g,%s,%d,%s\n",
			delay.Seconds(), step.Request.VideoID, step.Request.Bitrate, step.Request.Speed)
	}

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("could not write scenario: %w", err)
	}

	return nil
}
