package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"adflow/internal/domain"
	"adflow/internal/pipeline"
	"adflow/pkg/zip"
)

type createImageJobRequest struct {
	Name       string   `json:"name"`
	Languages  []string `json:"languages"`
	Ratios     []string `json:"ratios"`
	SourceURLs []string `json:"source_urls"`
}

type imageJobResponse struct {
	Job          imageJobView           `json:"job"`
	Images       []sourceImageView      `json:"images,omitempty"`
	Translations []imageTranslationView `json:"translations,omitempty"`
}

func (a *App) CreateImageJob(w http.ResponseWriter, r *http.Request) {
	var req createImageJobRequest
	if !a.decode(w, r, &req) {
		return
	}
	ratios := make([]domain.Ratio, len(req.Ratios))
	for i, ratio := range req.Ratios {
		ratios[i] = domain.Ratio(ratio)
	}
	job, images, err := a.Service.CreateJob(r.Context(), pipeline.NewImageJob{
		Name:       req.Name,
		Languages:  req.Languages,
		Ratios:     ratios,
		SourceURLs: req.SourceURLs,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, imageJobResponse{Job: newImageJobView(job), Images: sourceImageViews(images)})
}

func (a *App) GetImageJob(w http.ResponseWriter, r *http.Request) {
	detail, err := a.Service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, imageJobResponse{
		Job:          newImageJobView(detail.Job),
		Images:       sourceImageViews(detail.Images),
		Translations: imageTranslationViews(detail.Translations),
	})
}

func (a *App) DeleteImageJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.DeleteJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) StartExpansion(w http.ResponseWriter, r *http.Request) {
	job, err := a.Service.StartExpansion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, imageJobResponse{Job: newImageJobView(job)})
}

func (a *App) ExpandSourceImage(w http.ResponseWriter, r *http.Request) {
	img, err := a.Service.ExpandSourceImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newSourceImageView(img))
}

func (a *App) StartTranslations(w http.ResponseWriter, r *http.Request) {
	job, created, err := a.Service.StartTranslations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job": newImageJobView(job), "created": created})
}

func (a *App) ProcessImageTranslation(w http.ResponseWriter, r *http.Request) {
	item, err := a.Service.ProcessImageTranslation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newImageTranslationView(item))
}

func (a *App) RetryImageTranslations(w http.ResponseWriter, r *http.Request) {
	stale := false
	if v := r.URL.Query().Get("stale"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "stale must be a boolean")
			return
		}
		stale = parsed
	}
	res, err := a.Service.RetryImageTranslations(r.Context(), chi.URLParam(r, "id"), stale)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"reset": res.Reset, "recovered": res.Recovered})
}

func (a *App) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := a.Service.ListVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]versionView, len(versions))
	for i := range versions {
		out[i] = newVersionView(&versions[i])
	}
	a.json(w, http.StatusOK, map[string]any{"versions": out})
}

func (a *App) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	v, err := a.Service.ActivateVersion(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "vid"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newVersionView(v))
}

func (a *App) Sweep(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	report, err := a.Service.Sweep(r.Context(), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"failed":    report.Failed,
	})
}

func (a *App) ExportImageJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	entries, err := a.Service.ExportJob(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := zip.Write(&buf, entries); err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
