// Package departsvc serves the departure board web API over the merged
// schedule and real-time data sources.
package departsvc

import (
	"encoding/json"
	"fmt"
	logger "log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/opentransitau/departureboard/business/departures"
	"github.com/opentransitau/departureboard/business/data/schedule"
)

// serviceTimezone is the agency timezone every service date and time of day
// is interpreted in
const serviceTimezone = "Australia/Sydney"

// TripDetailSource provides the trip lookup the trip endpoint needs.
// *departures.ScheduleStore satisfies it.
type TripDetailSource interface {
	TripDetail(tripId string) (*schedule.TripDetail, error)
}

// WebService holds data needed to respond to and log departure board requests
type WebService struct {
	log        *logger.Logger
	controller *departures.Controller
	trips      TripDetailSource
	feed       departures.FeedSource
	alerts     AlertSource
	validate   *validator.Validate
	location   *time.Location
	collector  *Collector
	now        func() time.Time
}

// NewWebService creates a WebService over its data sources
func NewWebService(log *logger.Logger,
	controller *departures.Controller,
	trips TripDetailSource,
	feed departures.FeedSource,
	alerts AlertSource,
	collector *Collector) (*WebService, error) {

	location, err := time.LoadLocation(serviceTimezone)
	if err != nil {
		return nil, fmt.Errorf("unable to load service timezone %s: %w", serviceTimezone, err)
	}
	return &WebService{
		log:        log,
		controller: controller,
		trips:      trips,
		feed:       feed,
		alerts:     alerts,
		validate:   validator.New(),
		location:   location,
		collector:  collector,
		now:        time.Now,
	}, nil
}

// defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

// ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// Router builds the service's route table
func (s *WebService) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/metrics", s.collector.Handler())
	r.HandleFunc("/v1/stops/{stopID}/departures", s.handleDepartures).Methods(http.MethodGet)
	r.HandleFunc("/v1/trips/{tripID}", s.handleTripDetail).Methods(http.MethodGet)
	r.HandleFunc("/v1/alerts/{mode}", s.handleAlerts).Methods(http.MethodGet)
	r.Use(s.instrument)
	return r
}

// CreateServer creates a configured http.Server for responding to departure
// board requests
func CreateServer(host string, s *WebService) *http.Server {
	return &http.Server{
		Addr: host,
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      s.Router(),
	}
}

// instrument records the request count and duration per route template
func (s *WebService) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		s.collector.RequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		s.collector.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// envelope wraps every json response body
type envelope struct {
	Data interface{} `json:"data"`
	Meta interface{} `json:"meta,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *WebService) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		s.log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(jsonData); err != nil {
		s.log.Printf("Error writing json response: %s", err)
	}
}

func (s *WebService) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
