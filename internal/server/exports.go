package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/adaeze-okafor/stats-exporter/constants"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

type createExportRequest struct {
	Format   string            `json:"format"`
	Persona  string            `json:"persona"`
	View     string            `json:"view"`
	DataRef  string            `json:"data_ref"`
	Theme    string            `json:"theme"`
	Settings *export.Settings  `json:"settings"`
	Options  map[string]any    `json:"options"`
	Metadata map[string]string `json:"metadata"`
}

type jobPayload struct {
	*export.Job
	DownloadURL string `json:"download_url,omitempty"`
}

func (s *Server) jobResponse(j *export.Job) jobPayload {
	p := jobPayload{Job: j}
	if j.Status == constants.JobStatusCompleted && j.FilePath != "" {
		p.DownloadURL = fmt.Sprintf("%s/v1/exports/%s/download", strings.TrimSuffix(s.BaseURL, "/"), j.ID)
	}
	return p
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var body createExportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req := export.CreateRequest{
		Format:   body.Format,
		Persona:  body.Persona,
		View:     body.View,
		DataRef:  body.DataRef,
		Theme:    body.Theme,
		Settings: body.Settings,
		Options:  body.Options,
		Metadata: body.Metadata,
	}

	// The bundle is resolved here so the orchestrator stays storage-agnostic.
	// An empty data_ref falls through to the manager's validator.
	if body.DataRef != "" {
		bundle, ok := s.Catalog.Get(body.DataRef)
		if !ok {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("unknown dataset %q", body.DataRef))
			return
		}
		req.Data = bundle
	}

	job, err := s.Manager.CreateExportJob(req)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/exports/%s", job.ID))
	writeJSON(w, http.StatusAccepted, s.jobResponse(job))
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	var statusFilter constants.JobStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if !constants.IsValidJobStatus(raw) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid status: %s", raw))
			return
		}
		statusFilter = constants.JobStatus(raw)
	}

	var jobs []*export.Job
	if raw := strings.TrimSpace(r.URL.Query().Get("hours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid hours: %s", raw))
			return
		}
		jobs = s.Manager.GetRecentJobs(hours)
	} else {
		jobs = s.Manager.GetAllJobs()
	}

	payload := make([]jobPayload, 0, len(jobs))
	for _, j := range jobs {
		if statusFilter != "" && j.Status != statusFilter {
			continue
		}
		payload = append(payload, s.jobResponse(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": payload, "count": len(payload)})
}

func (s *Server) handleExportStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Manager.GetExportStatistics())
}

// Submission metadata for clients building export forms.

func (s *Server) handleListFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"formats": s.Manager.Formats()})
}

func (s *Server) handleListThemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"themes": s.Manager.ThemeNames()})
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid job id"))
		return
	}
	job, err := s.Manager.GetJobStatus(id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.jobResponse(job))
}

func (s *Server) handleCancelExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid job id"))
		return
	}
	if err := s.Manager.CancelJob(id); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	job, err := s.Manager.GetJobStatus(id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.jobResponse(job))
}

func (s *Server) handleDeleteExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid job id"))
		return
	}
	if err := s.Manager.DeleteJob(id, true); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid job id"))
		return
	}
	job, err := s.Manager.GetJobStatus(id)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if job.Status != constants.JobStatusCompleted || job.FilePath == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("artifact not ready"))
		return
	}

	f, err := os.Open(job.FilePath)
	if err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("artifact missing"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	if mimeType, ok := s.Manager.MimeTypeFor(job.Format); ok {
		w.Header().Set("Content-Type", mimeType)
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(job.FilePath)))
	http.ServeContent(w, r, filepath.Base(job.FilePath), info.ModTime(), f)
}
