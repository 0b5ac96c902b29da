package handlers

import (
	"net/http"
	"strconv"

	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/metrics"
)

type extractQuery struct {
	URL string `query:"url" validate:"required,max=2048"`
}

type extractResponse struct {
	Link        mapurl.LinkKind    `json:"link"`
	Coordinates *mapurl.Coordinate `json:"coordinates,omitempty"`
	Rule        mapurl.Rule        `json:"rule,omitempty"`
	Place       string             `json:"place,omitempty"`
}

type embedQuery struct {
	URL  string `query:"url" validate:"max=2048"`
	Lat  string `query:"lat" validate:"required_with=Lng,omitempty,numeric"`
	Lng  string `query:"lng" validate:"required_with=Lat,omitempty,numeric"`
	Name string `query:"name" validate:"max=300"`
	Lang string `query:"lang" validate:"omitempty,oneof=zh en pt"`
}

// ExtractMapURL reports what a map link says on its own, without following it.
func (h *Handler) ExtractMapURL(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	req := extractQuery{URL: r.URL.Query().Get("url")}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "extract_map_url", "status", "invalid_request", "error", err)
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp := extractResponse{Link: mapurl.Classify(req.URL)}
	if c, rule, ok := mapurl.ExtractCoordinatesRule(req.URL); ok {
		resp.Coordinates = &c
		resp.Rule = rule
		metrics.ExtractionsTotal.WithLabelValues(string(rule)).Inc()
	} else {
		metrics.ExtractionsTotal.WithLabelValues("none").Inc()
	}
	if place, ok := mapurl.ExtractPlace(req.URL); ok {
		resp.Place = place
	}
	logger.Info("action", "action", "extract_map_url", "status", "success", "link", resp.Link, "has_coordinates", resp.Coordinates != nil, "has_place", resp.Place != "")
	writeJSON(w, http.StatusOK, resp)
}

// BuildMapEmbed builds an embed from ad-hoc restaurant fields.
func (h *Handler) BuildMapEmbed(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	q := r.URL.Query()
	req := embedQuery{
		URL:  q.Get("url"),
		Lat:  q.Get("lat"),
		Lng:  q.Get("lng"),
		Name: q.Get("name"),
		Lang: q.Get("lang"),
	}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "build_map_embed", "status", "invalid_request", "error", err)
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	embedReq := mapurl.EmbedRequest{
		MapURL: req.URL,
		Name:   req.Name,
		Lang:   parseLang(req.Lang),
	}
	if req.Lat != "" {
		lat, errLat := strconv.ParseFloat(req.Lat, 64)
		lng, errLng := strconv.ParseFloat(req.Lng, 64)
		if errLat != nil || errLng != nil {
			logger.Warn("action", "action", "build_map_embed", "status", "invalid_coordinates")
			writeError(w, http.StatusBadRequest, "invalid lat, lng")
			return
		}
		embedReq.Latitude = &lat
		embedReq.Longitude = &lng
	}

	embed := mapurl.BuildEmbed(embedReq)
	if embed.Query == "" {
		logger.Warn("action", "action", "build_map_embed", "status", "empty_target")
		writeError(w, http.StatusBadRequest, "url, lat and lng, or name required")
		return
	}
	metrics.EmbedsTotal.WithLabelValues(string(embed.Kind)).Inc()
	logger.Info("action", "action", "build_map_embed", "status", "success", "kind", embed.Kind, "lang", embedReq.Lang)
	writeJSON(w, http.StatusOK, embed)
}

// parseLang maps an empty or unsupported value to English.
func parseLang(value string) mapurl.Lang {
	lang := mapurl.Lang(value)
	if !lang.Valid() {
		return mapurl.LangEN
	}
	return lang
}
