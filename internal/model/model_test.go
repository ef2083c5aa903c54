package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dacirco/dacirco/internal/model"
)

func TestTranscodeRequestValidate(t *testing.T) {
	tests := map[string]struct {
		request model.TranscodeRequest
		expErr  bool
	}{
		"A correct request should validate.": {
			request: model.TranscodeRequest{VideoID: "bbb_0.mp4", Bitrate: 7000, Speed: "ultrafast"},
		},

		"The fast speed preset should validate.": {
			request: model.TranscodeRequest{VideoID: "bbb_0.mp4", Bitrate: 500, Speed: "fast"},
		},

		"A request without video should fail.": {
			request: model.TranscodeRequest{Bitrate: 1000, Speed: "fast"},
			expErr:  true,
		},

		"A bitrate under the minimum should fail.": {
			request: model.TranscodeRequest{VideoID: "bbb_0.mp4", Bitrate: 499, Speed: "fast"},
			expErr:  true,
		},

		"A bitrate over the maximum should fail.": {
			request: model.TranscodeRequest{VideoID: "bbb_0.mp4", Bitrate: 8001, Speed: "fast"},
			expErr:  true,
		},

		"An unknown speed preset should fail.": {
			request: model.TranscodeRequest{VideoID: "bbb_0.mp4", Bitrate: 1000, Speed: "veryslow"},
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.request.Validate()

			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJobStateIsTerminal(t *testing.T) {
	assert.False(t, model.JobStateWaiting.IsTerminal())
	assert.False(t, model.JobStateStarted.IsTerminal())
	assert.True(t, model.JobStateCompleted.IsTerminal())
	assert.True(t, model.JobStateError.IsTerminal())
}
