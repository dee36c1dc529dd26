package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"adflow/internal/domain"
	"adflow/internal/patcher"
	"adflow/internal/pipeline"
)

type createTranslationRequest struct {
	PageID        string `json:"page_id"`
	Language      string `json:"language"`
	SourceContent string `json:"source_content"`
}

type swapImageRequest struct {
	OldURL string `json:"old_url"`
	NewURL string `json:"new_url"`
	// Hint is the zero-based position of the image among the page's images.
	Hint *int `json:"hint,omitempty"`
}

type fixResponse struct {
	Translation translationView `json:"translation"`
	Analysis    any             `json:"analysis"`
	Applied     int             `json:"applied"`
	Failed      int             `json:"failed"`
}

func (a *App) CreateTranslation(w http.ResponseWriter, r *http.Request) {
	var req createTranslationRequest
	if !a.decode(w, r, &req) {
		return
	}
	t, err := a.Service.CreateTranslation(r.Context(), pipeline.NewTranslation{
		PageID:        req.PageID,
		Language:      req.Language,
		SourceContent: req.SourceContent,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, newTranslationView(t))
}

func (a *App) GetTranslation(w http.ResponseWriter, r *http.Request) {
	a.respondTranslation(w, r, a.Service.GetTranslation)
}

func (a *App) TranslatePage(w http.ResponseWriter, r *http.Request) {
	a.respondTranslation(w, r, a.Service.TranslatePage)
}

func (a *App) PublishTranslation(w http.ResponseWriter, r *http.Request) {
	a.respondTranslation(w, r, a.Service.PublishTranslation)
}

func (a *App) RetryTranslation(w http.ResponseWriter, r *http.Request) {
	a.respondTranslation(w, r, a.Service.RetryTranslation)
}

func (a *App) AnalyzeTranslation(w http.ResponseWriter, r *http.Request) {
	res, err := a.Service.AnalyzeTranslation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) FixTranslation(w http.ResponseWriter, r *http.Request) {
	res, err := a.Service.FixTranslation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, fixResponse{
		Translation: newTranslationView(res.Translation),
		Analysis:    res.Analysis,
		Applied:     res.Report.AppliedCount(),
		Failed:      len(res.Report.Failed),
	})
}

func (a *App) SwapImage(w http.ResponseWriter, r *http.Request) {
	var req swapImageRequest
	if !a.decode(w, r, &req) {
		return
	}
	hint := patcher.NoHint
	if req.Hint != nil {
		if *req.Hint < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "hint must not be negative")
			return
		}
		hint = *req.Hint
	}
	res, err := a.Service.SwapImage(r.Context(), chi.URLParam(r, "id"), pipeline.SwapRequest{
		OldURL: req.OldURL,
		NewURL: req.NewURL,
		Hint:   hint,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"translation": newTranslationView(res.Translation),
		"matched":     res.Matched,
		"strategy":    string(res.Strategy),
	})
}

func (a *App) respondTranslation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*domain.Translation, error)) {
	t, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newTranslationView(t))
}
