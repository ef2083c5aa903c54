// Package scenario implements loading and playing request scenarios against
// a running DaCirco API, mainly used to benchmark the transcoding backends.
package scenario

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dacirco/dacirco/internal/model"
)

// Step is a single transcode request fired at a given offset from the start
// of the scenario.
type Step struct {
	// At is the offset from the scenario start.
	At      time.Duration
	Request model.TranscodeRequest
}

// Scenario is an ordered list of transcode requests.
type Scenario []Step

func (s Scenario) String() string {
	out := ""
	for _, step := range s {
		out += fmt.Sprintf("At t=%s, transcode %s at %dk with %s speed\n",
			step.At, step.Request.VideoID, step.Request.Bitrate, step.Request.Speed)
	}

	return out
}

// LoadCSV parses a scenario from CSV rows of the form
// "delay,movie,bitrate,preset". Delays are relative to the previous row.
// Comment lines starting with # and rows with an invalid delay are skipped,
// like rows with the wrong number of fields.
func LoadCSV(r io.Reader) (Scenario, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	scenario := Scenario{}
	offset := time.Duration(0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read scenario: %w", err)
		}

		if len(row) != 4 {
			continue
		}

		delay, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			continue
		}

		bitrate, err := strconv.Atoi(row[2])
		if err != nil {
			continue
		}

		offset += time.Duration(delay * float64(time.Second))
		scenario = append(scenario, Step{
			At: offset,
			Request: model.TranscodeRequest{
				VideoID: row[1],
				Bitrate: bitrate,
				Speed:   row[3],
			},
		})
	}

	return scenario, nil
}
