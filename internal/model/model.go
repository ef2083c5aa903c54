package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// JobState represents the lifecycle state of a transcoding job.
type JobState string

const (
	// JobStateWaiting is the state of a job that has been accepted but not dispatched yet.
	JobStateWaiting JobState = "Waiting"
	// JobStateStarted is the state of a job whose transcoding run is in progress.
	JobStateStarted JobState = "Started"
	// JobStateCompleted is the terminal state of a job that produced a transcoded video.
	JobStateCompleted JobState = "Completed"
	// JobStateError is the terminal state of a job that failed.
	JobStateError JobState = "Error"
)

// IsTerminal returns true when the state can't transition anymore.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateError
}

// Encoding speed presets accepted by the transcoder.
const (
	SpeedUltrafast = "ultrafast"
	SpeedFast      = "fast"
)

// Bitrate limits in kbps accepted by the transcoder.
const (
	MinBitrate = 500
	MaxBitrate = 8000
)

// TranscodeRequest is the user facing request to transcode a video.
type TranscodeRequest struct {
	// VideoID is the name of the source video object in the store.
	VideoID string `json:"id_video" validate:"required,max=256"`
	// Bitrate is the target bit-rate in kbps.
	Bitrate int `json:"bitrate" validate:"min=500,max=8000"`
	// Speed is the encoding speed preset.
	Speed string `json:"speed" validate:"oneof=ultrafast fast"`
}

// Validate validates the transcoding request values.
func (t TranscodeRequest) Validate() error {
	err := modelValidate.Struct(t)
	if err != nil {
		return fmt.Errorf("invalid transcode request: %w", err)
	}

	return nil
}

var modelValidate = func() *validator.Validate {
	return validator.New()
}()

// Job is a transcoding job tracked by the job manager.
type Job struct {
	ID      string
	Request TranscodeRequest
	State   JobState

	CreatedAt time.Time
	// Duration is the wall time from creation to completion. Only meaningful
	// when the job state is Completed.
	Duration time.Duration
	// FailureReason carries the error message of jobs in Error state.
	FailureReason string
}

func (j Job) String() string {
	return fmt.Sprintf("task %s for movie %s at bitrate %d and speed %s",
		j.ID, j.Request.VideoID, j.Request.Bitrate, j.Request.Speed)
}

// Stats are aggregated measurements over all known jobs.
type Stats struct {
	TotalJobs     int
	CompletedJobs int
	ErroredJobs   int
	// CompletedRatio is completed jobs over total jobs.
	CompletedRatio float64
	// DurationAvg is the mean duration of completed jobs.
	DurationAvg time.Duration
	// DurationP95 is the 95th percentile duration of completed jobs.
	DurationP95 time.Duration
}
