package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/internal/services"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

// PriceEstimator is the price service surface used by the HTTP layer
type PriceEstimator interface {
	Predict(ctx context.Context, req services.PriceRequest) (*models.PriceQuote, error)
	Weather(ctx context.Context, city string) (*models.WeatherSnapshot, error)
	Overview(ctx context.Context) *models.WeatherOverview
	Status() *models.DatasetStatus
	Cities() []string
	CurrentDataset() (*models.Dataset, error)
}

// WorkbookRenderer renders a dataset as xlsx bytes
type WorkbookRenderer func(ds *models.Dataset) ([]byte, error)

// PriceHandler handles the market price endpoints
type PriceHandler struct {
	responder
	prices      PriceEstimator
	workbook    WorkbookRenderer
	servicePort int
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(
	prices PriceEstimator,
	workbook WorkbookRenderer,
	servicePort int,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *PriceHandler {
	return &PriceHandler{
		responder:   responder{logger: logger, metrics: metricsCollector},
		prices:      prices,
		workbook:    workbook,
		servicePort: servicePort,
	}
}

// ServiceInfo handles GET /price_service
func (h *PriceHandler) ServiceInfo(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]interface{}{
		"service": "price_service",
		"status":  "running",
		"port":    h.servicePort,
	}, http.StatusOK)
}

// GetCities handles GET /cities
func (h *PriceHandler) GetCities(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.prices.Cities(), http.StatusOK)
}

// GetCityWeather handles GET /weather/{city}
func (h *PriceHandler) GetCityWeather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	city := mux.Vars(r)["city"]

	weather, err := h.prices.Weather(ctx, city)
	if err != nil {
		var nf *models.NotFoundError
		switch {
		case errors.As(err, &nf), errors.Is(err, models.ErrWeatherUnavailable):
			h.sendError(w, r, fmt.Sprintf("Weather data not available for %s", city), http.StatusNotFound)
		default:
			h.logger.Error(ctx, "[API_WEATHER_ERROR] Failed to get weather", logging.Fields{"city": city}, err)
			h.sendError(w, r, "failed to retrieve weather", http.StatusInternalServerError)
		}
		return
	}

	h.sendJSON(w, weather, http.StatusOK)
}

// PredictPrice handles GET|POST /predict_price
func (h *PriceHandler) PredictPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parsePriceRequest(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := h.prices.Predict(ctx, req)
	if err != nil {
		var ve *models.ValidationError
		var nf *models.NotFoundError
		switch {
		case errors.As(err, &ve):
			h.sendError(w, r, ve.Message, http.StatusBadRequest)
		case errors.As(err, &nf):
			h.sendError(w, r, fmt.Sprintf("Unknown city: %s", nf.ID), http.StatusNotFound)
		default:
			h.logger.Error(ctx, "[API_PREDICT_ERROR] Price prediction failed", logging.Fields{
				"crop": req.Crop,
				"city": req.City,
			}, err)
			h.sendError(w, r, "failed to predict price", http.StatusInternalServerError)
		}
		return
	}

	h.sendJSON(w, quote, http.StatusOK)
}

// GetWeatherSnapshot handles GET /weather_snapshot
func (h *PriceHandler) GetWeatherSnapshot(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.prices.Overview(r.Context()), http.StatusOK)
}

// GetDatasetStatus handles GET /dataset_status
func (h *PriceHandler) GetDatasetStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, h.prices.Status(), http.StatusOK)
}

// ExportDataset handles GET /dataset/export.xlsx
func (h *PriceHandler) ExportDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ds, err := h.prices.CurrentDataset()
	if err != nil {
		h.sendError(w, r, "no dataset has been generated yet", http.StatusNotFound)
		return
	}

	data, err := h.workbook(ds)
	if err != nil {
		h.logger.Error(ctx, "[API_EXPORT_ERROR] Failed to render workbook", logging.Fields{"rows": len(ds.Rows)}, err)
		h.sendError(w, r, "failed to export dataset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="market_dataset_%s.xlsx"`, ds.Date))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// parsePriceRequest reads inputs from the JSON body on POST and the query string otherwise
func parsePriceRequest(r *http.Request) (services.PriceRequest, error) {
	values := map[string]interface{}{}
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			return services.PriceRequest{}, errors.New("invalid JSON body")
		}
	} else {
		q := r.URL.Query()
		for _, key := range []string{"crop", "city", "buyer_qty", "seller_qty"} {
			if q.Has(key) {
				values[key] = q.Get(key)
			}
		}
	}

	buyer, err := quantity(values, "buyer_qty", models.DefaultBuyerQty)
	if err != nil {
		return services.PriceRequest{}, err
	}
	seller, err := quantity(values, "seller_qty", models.DefaultSellerQty)
	if err != nil {
		return services.PriceRequest{}, err
	}

	return services.PriceRequest{
		Crop:      text(values, "crop"),
		City:      text(values, "city"),
		BuyerQty:  buyer,
		SellerQty: seller,
	}, nil
}

func text(values map[string]interface{}, key string) string {
	switch v := values[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

func quantity(values map[string]interface{}, key string, def float64) (float64, error) {
	var f float64
	switch v := values[key].(type) {
	case nil:
		return def, nil
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", key)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
	// ParseFloat accepts NaN and Inf, which cannot be encoded as JSON
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

// RegisterRoutes registers the price service routes
func (h *PriceHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/price_service", h.ServiceInfo).Methods("GET")
	router.HandleFunc("/cities", h.GetCities).Methods("GET")
	router.HandleFunc("/weather/{city}", h.GetCityWeather).Methods("GET")
	router.HandleFunc("/predict_price", h.PredictPrice).Methods("GET", "POST")
	router.HandleFunc("/weather_snapshot", h.GetWeatherSnapshot).Methods("GET")
	router.HandleFunc("/dataset_status", h.GetDatasetStatus).Methods("GET")
	router.HandleFunc("/dataset/export.xlsx", h.ExportDataset).Methods("GET")
}

var _ PriceEstimator = (*services.PriceService)(nil)
