package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"adflow/internal/pipeline"
)

type createABTestRequest struct {
	ControlTranslationID string `json:"control_translation_id"`
	SplitPercentage      int    `json:"split_percentage"`
}

type completeABTestRequest struct {
	Winner string `json:"winner"`
}

func (a *App) CreateABTest(w http.ResponseWriter, r *http.Request) {
	var req createABTestRequest
	if !a.decode(w, r, &req) {
		return
	}
	t, err := a.Service.CreateABTest(r.Context(), pipeline.NewABTest{
		ControlTranslationID: req.ControlTranslationID,
		SplitPercentage:      req.SplitPercentage,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, newABTestView(t))
}

func (a *App) StartABTest(w http.ResponseWriter, r *http.Request) {
	t, err := a.Service.StartABTest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newABTestView(t))
}

func (a *App) CompleteABTest(w http.ResponseWriter, r *http.Request) {
	var req completeABTestRequest
	if !a.decode(w, r, &req) {
		return
	}
	t, err := a.Service.CompleteABTest(r.Context(), chi.URLParam(r, "id"), req.Winner)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newABTestView(t))
}

func (a *App) DeleteABTest(w http.ResponseWriter, r *http.Request) {
	if err := a.Service.DeleteABTest(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
