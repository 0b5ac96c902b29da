package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"restodir/backend/internal/locate"
	"restodir/backend/internal/mapurl"
	"restodir/backend/internal/metrics"
	"restodir/backend/internal/repository"

	"github.com/go-chi/chi/v5"
)

type restaurantMapQuery struct {
	Lang string `query:"lang" validate:"omitempty,oneof=zh en pt"`
}

type nearbyQuery struct {
	Lat   string `query:"lat" validate:"required,numeric"`
	Lng   string `query:"lng" validate:"required,numeric"`
	Limit string `query:"limit" validate:"omitempty,number"`
}

type restaurantMapResponse struct {
	RestaurantID int64 `json:"restaurantId"`
	mapurl.Embed
}

type locateResponse struct {
	RestaurantID int64           `json:"restaurantId"`
	Location     locate.Location `json:"location"`
	Stored       bool            `json:"stored"`
}

func (h *Handler) RestaurantMap(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	id, ok := parseRestaurantID(r)
	if !ok {
		logger.Warn("action", "action", "restaurant_map", "status", "invalid_restaurant_id")
		writeError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}
	req := restaurantMapQuery{Lang: r.URL.Query().Get("lang")}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "restaurant_map", "status", "invalid_request", "restaurant_id", id, "error", err)
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	restaurant, err := h.repo.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("action", "action", "restaurant_map", "status", "not_found", "restaurant_id", id)
			writeError(w, http.StatusNotFound, "restaurant not found")
			return
		}
		logger.Error("action", "action", "restaurant_map", "status", "db_error", "restaurant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	embed := h.locator.Embed(ctx, restaurant, parseLang(req.Lang))
	metrics.EmbedsTotal.WithLabelValues(string(embed.Kind)).Inc()
	logger.Info("action", "action", "restaurant_map", "status", "success", "restaurant_id", id, "kind", embed.Kind)
	writeJSON(w, http.StatusOK, restaurantMapResponse{RestaurantID: id, Embed: embed})
}

func (h *Handler) NearbyRestaurants(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	if h.places == nil {
		logger.Warn("action", "action", "nearby_restaurants", "status", "index_unavailable")
		writeError(w, http.StatusServiceUnavailable, "search index is not configured")
		return
	}
	q := r.URL.Query()
	req := nearbyQuery{Lat: q.Get("lat"), Lng: q.Get("lng"), Limit: q.Get("limit")}
	if err := h.validator.Struct(req); err != nil {
		logger.Warn("action", "action", "nearby_restaurants", "status", "invalid_request", "error", err)
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	lat, errLat := strconv.ParseFloat(req.Lat, 64)
	lng, errLng := strconv.ParseFloat(req.Lng, 64)
	center := mapurl.Coordinate{Latitude: lat, Longitude: lng}
	if errLat != nil || errLng != nil || !center.Valid() {
		logger.Warn("action", "action", "nearby_restaurants", "status", "invalid_coordinates")
		writeError(w, http.StatusBadRequest, "invalid lat, lng")
		return
	}
	limit := 10
	if req.Limit != "" {
		if v, err := strconv.Atoi(req.Limit); err == nil && v > 0 && v <= 50 {
			limit = v
		}
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	items, err := h.places.Nearby(ctx, center, limit)
	if err != nil {
		logger.Error("action", "action", "nearby_restaurants", "status", "search_error", "error", err)
		writeError(w, http.StatusBadGateway, "search error")
		return
	}
	logger.Info("action", "action", "nearby_restaurants", "status", "success", "limit", limit, "count", len(items))
	writeJSON(w, http.StatusOK, items)
}

// AdminLocateRestaurant resolves a restaurant's coordinates and stores them. With
// force=true, stored coordinates are ignored and the restaurant is located again.
func (h *Handler) AdminLocateRestaurant(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	id, ok := parseRestaurantID(r)
	if !ok {
		logger.Warn("action", "action", "admin_locate_restaurant", "status", "invalid_restaurant_id")
		writeError(w, http.StatusBadRequest, "invalid restaurant id")
		return
	}

	ctx, cancel := h.withLocateTimeout(r.Context())
	defer cancel()
	restaurant, err := h.repo.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("action", "action", "admin_locate_restaurant", "status", "not_found", "restaurant_id", id)
			writeError(w, http.StatusNotFound, "restaurant not found")
			return
		}
		logger.Error("action", "action", "admin_locate_restaurant", "status", "db_error", "restaurant_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	if force, _ := strconv.ParseBool(r.URL.Query().Get("force")); force {
		restaurant.Latitude = nil
		restaurant.Longitude = nil
	}

	loc, err := h.locator.Locate(ctx, restaurant)
	if err != nil {
		if errors.Is(err, locate.ErrNotLocated) {
			logger.Warn("action", "action", "admin_locate_restaurant", "status", "not_located", "restaurant_id", id)
			writeError(w, http.StatusUnprocessableEntity, "restaurant could not be located")
			return
		}
		logger.Error("action", "action", "admin_locate_restaurant", "status", "upstream_error", "restaurant_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "locate failed")
		return
	}

	stored := false
	if loc.Source != locate.SourceStored {
		if err := h.repo.SetRestaurantLocation(ctx, id, loc.Coordinate); err != nil {
			logger.Error("action", "action", "admin_locate_restaurant", "status", "db_error", "restaurant_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "db error")
			return
		}
		stored = true
	}
	logger.Info("action", "action", "admin_locate_restaurant", "status", "success", "restaurant_id", id, "source", loc.Source, "stored", stored)
	writeJSON(w, http.StatusOK, locateResponse{RestaurantID: id, Location: loc, Stored: stored})
}

func parseRestaurantID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
