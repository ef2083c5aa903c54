package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/dacirco/dacirco/internal/log"
	"github.com/dacirco/dacirco/internal/scenario"
)

type playCommand struct {
	scenarioFile string
	instances    int
	movies       []string
	saveFile     string
	apiURL       string
}

// NewPlayCommand returns the scenario player command.
func NewPlayCommand(app *kingpin.Application) Command {
	c := &playCommand{}
	cmd := app.Command("play", "Plays a request scenario against a running DaCirco API.")

	cmd.Flag("scenario-file", "An input scenario CSV file.").Short('f').StringVar(&c.scenarioFile)
	cmd.Flag("instances", "If no scenario file, generate a new scenario with this number of requests.").Short('n').Default("10").IntVar(&c.instances)
	cmd.Flag("movie", "Source movie the generated scenarios pick from (can be repeated).").Default("bbb_1.mp4").StringsVar(&c.movies)
	cmd.Flag("save-file", "Where generated scenarios are saved so they can be replayed.").Default("last_scenario.csv").StringVar(&c.saveFile)
	cmd.Flag("api-url", "The base URL of the DaCirco API.").Short('t').Default("http://127.0.0.1:9000").StringVar(&c.apiURL)

	return c
}

func (c playCommand) Name() string { return "play" }
func (c playCommand) Run(ctx context.Context, rootConfig RootConfig) error {
	logger := rootConfig.Logger.WithValues(log.Kv{"command": c.Name()})

	scn, err := c.loadScenario(logger)
	if err != nil {
		return err
	}

	logger.Infof("Playing scenario of %d requests", len(scn))
	logger.Debugf("Scenario:\n%s", scn)

	player, err := scenario.NewPlayer(scenario.PlayerConfig{
		APIURL: c.apiURL,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create scenario player: %w", err)
	}

	err = player.Play(ctx, scn)
	if err != nil {
		return fmt.Errorf("could not play scenario: %w", err)
	}

	logger.Infof("Scenario played")

	return nil
}

func (c playCommand) loadScenario(logger log.Logger) (scenario.Scenario, error) {
	if c.scenarioFile != "" {
		f, err := os.Open(c.scenarioFile)
		if err != nil {
			return nil, fmt.Errorf("could not open scenario file: %w", err)
		}
		defer f.Close()

		scn, err := scenario.LoadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("could not load scenario: %w", err)
		}

		return scn, nil
	}

	scn, err := scenario.Generate(c.instances, scenario.GeneratorConfig{Movies: c.movies})
	if err != nil {
		return nil, fmt.Errorf("could not generate scenario: %w", err)
	}

	if c.saveFile != "" {
		f, err := os.Create(c.saveFile)
		if err != nil {
			return nil, fmt.Errorf("could not create scenario save file: %w", err)
		}
		defer f.Close()

		err = scenario.WriteCSV(f, scn)
		if err != nil {
			return nil, err
		}
		logger.Infof("Generated scenario saved to %s", c.saveFile)
	}

	return scn, nil
}
