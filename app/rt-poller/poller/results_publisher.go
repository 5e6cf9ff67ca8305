package poller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// feedResult reports one (mode, feed type) retrieval within a cycle
type feedResult struct {
	Mode    string `json:"mode"`
	Feed    string `json:"feed"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// cycleResults summarizes one complete poll cycle
type cycleResults struct {
	StartedAt      time.Time     `json:"started_at"`
	DurationMillis int64         `json:"duration_ms"`
	Failures       int           `json:"failures"`
	Results        []*feedResult `json:"results"`
}

// pollResultsPublisher sends cycle results to their destinations (nats and
// the metrics collector)
type pollResultsPublisher struct {
	log             *log.Logger
	natsConnection  *nats.Conn
	collector       *Collector
	publishOverNats bool
}

func makePollResultsPublisher(log *log.Logger,
	natsConnection *nats.Conn,
	collector *Collector,
	publishOverNats bool) *pollResultsPublisher {
	return &pollResultsPublisher{
		log:             log,
		natsConnection:  natsConnection,
		collector:       collector,
		publishOverNats: publishOverNats,
	}
}

// publish records cycle instruments and sends the results over NATS according
// to publishOverNats
func (p *pollResultsPublisher) publish(results *cycleResults) {
	p.collector.CyclesRun.Inc()
	p.collector.CycleDuration.Observe(float64(results.DurationMillis) / 1000.0)
	for _, result := range results.Results {
		p.collector.FeedFetches.WithLabelValues(result.Mode, result.Feed).Inc()
		if result.Error != "" {
			p.collector.FeedFailures.WithLabelValues(result.Mode, result.Feed).Inc()
			continue
		}
		p.collector.RecordsCached.WithLabelValues(result.Mode, result.Feed).Set(float64(result.Records))
	}
	if p.publishOverNats {
		p.sendOverNats(results)
	}
}

func (p *pollResultsPublisher) sendOverNats(results *cycleResults) {
	jsonData, err := json.Marshal(results)
	if err != nil {
		p.log.Printf("failed to marshal cycleResults in "+
			"pollResultsPublisher.sendOverNats, error:%v", err)
		p.collector.NATSPublishErrs.Inc()
		return
	}
	err = p.natsConnection.Publish("rt-poll-results", jsonData)
	if err != nil {
		p.log.Printf("failed to send cycleResults in "+
			"pollResultsPublisher.sendOverNats, error:%v", err)
		p.collector.NATSPublishErrs.Inc()
		return
	}
	p.collector.NATSPublished.Inc()
}
