package departsvc

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/opentransitau/departureboard/business/data/rtcache"
)

// AlertSource provides the cached service alert reads the alerts endpoint
// needs. *rtcache.Cache satisfies it.
type AlertSource interface {
	GetServiceAlerts(ctx context.Context, mode rtcache.Mode) ([]*rtcache.ServiceAlert, error)
}

// alertsData is the data section of an alerts response
type alertsData struct {
	Mode   rtcache.Mode            `json:"mode"`
	Alerts []*rtcache.ServiceAlert `json:"alerts"`
}

func (s *WebService) handleAlerts(w http.ResponseWriter, r *http.Request) {
	mode := rtcache.Mode(mux.Vars(r)["mode"])
	if !validMode(mode) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %s", mode))
		return
	}

	alerts, err := s.alerts.GetServiceAlerts(r.Context(), mode)
	if err != nil {
		// an unreadable blob degrades to no alerts, same as an expired one
		s.log.Printf("unable to retrieve service alerts for mode %s, error: %v", mode, err)
		alerts = nil
	}
	if alerts == nil {
		alerts = []*rtcache.ServiceAlert{}
	}

	s.writeJSON(w, http.StatusOK, envelope{Data: alertsData{Mode: mode, Alerts: alerts}})
}

func validMode(mode rtcache.Mode) bool {
	for _, known := range rtcache.AllModes {
		if mode == known {
			return true
		}
	}
	return false
}
