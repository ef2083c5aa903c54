package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dacirco/dacirco/internal/app/jobmanager"
	"github.com/dacirco/dacirco/internal/model"
)

type jobResponse struct {
	ID            string  `json:"id"`
	VideoID       string  `json:"id_video"`
	Bitrate       int     `json:"bitrate"`
	Speed         string  `json:"speed"`
	State         string  `json:"state"`
	CreatedAt     string  `json:"created_at"`
	Duration      float64 `json:"duration_seconds,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

type jobStateResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type statsResponse struct {
	TotalJobs      int     `json:"total_jobs"`
	CompletedJobs  int     `json:"completed_jobs"`
	ErroredJobs    int     `json:"errored_jobs"`
	CompletedRatio float64 `json:"completed_ratio"`
	DurationAvg    float64 `json:"duration_avg_seconds"`
	DurationP95    float64 `json:"duration_p95_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func mapJobToResponse(job model.Job) jobResponse {
	return jobResponse{
		ID:            job.ID,
		VideoID:       job.Request.VideoID,
		Bitrate:       job.Request.Bitrate,
		Speed:         job.Request.Speed,
		State:         string(job.State),
		CreatedAt:     job.CreatedAt.UTC().Format(time.RFC3339),
		Duration:      job.Duration.Seconds(),
		FailureReason: job.FailureReason,
	}
}

func (a api) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.logger.Errorf("Could not encode response: %s", err)
	}
}

func (a api) writeError(w http.ResponseWriter, statusCode int, err error) {
	a.writeJSON(w, statusCode, errorResponse{Error: err.Error()})
}

func (a api) handlerCreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.TranscodeRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}

		job, err := a.serviceApp.CreateJob(r.Context(), req)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}

		w.Header().Set("Location", jobsBasePath+"/"+job.ID)
		a.writeJSON(w, http.StatusCreated, mapJobToResponse(*job))
	}
}

func (a api) handlerListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := a.serviceApp.ListJobs(r.Context())
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}

		resp := make([]jobResponse, 0, len(jobs))
		for _, job := range jobs {
			resp = append(resp, mapJobToResponse(job))
		}

		a.writeJSON(w, http.StatusOK, resp)
	}
}

func (a api) handlerGetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := a.serviceApp.GetJob(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			if errors.Is(err, jobmanager.ErrJobNotFound) {
				a.writeError(w, http.StatusNotFound, err)
				return
			}
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}

		a.writeJSON(w, http.StatusOK, mapJobToResponse(*job))
	}
}

func (a api) handlerGetJobState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := a.serviceApp.GetJob(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			if errors.Is(err, jobmanager.ErrJobNotFound) {
				a.writeError(w, http.StatusNotFound, err)
				return
			}
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}

		a.writeJSON(w, http.StatusOK, jobStateResponse{ID: job.ID, State: string(job.State)})
	}
}

func (a api) handlerStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := a.serviceApp.Stats(r.Context())
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}

		a.writeJSON(w, http.StatusOK, statsResponse{
			TotalJobs:      stats.TotalJobs,
			CompletedJobs:  stats.CompletedJobs,
			ErroredJobs:    stats.ErroredJobs,
			CompletedRatio: stats.CompletedRatio,
			DurationAvg:    stats.DurationAvg.Seconds(),
			DurationP95:    stats.DurationP95.Seconds(),
		})
	}
}

func (a api) handlerHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}
