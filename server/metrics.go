package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "server",
	Name:      "connections_active",
	Help:      "Number of active ws connections",
})

var transactionCounts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "transaction_count",
	Help:      "Total number of transaction events by type.",
}, []string{"station_id", "event_type"})

var verdictCounts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "authorize_verdict_count",
	Help:      "Total number of authorization verdicts issued.",
}, []string{"station_id", "verdict"})

var consumedEnergy = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ocpp",
	Name:      "consumed_energy_wh",
	Help:      "Running energy total reported by the last cost update.",
}, []string{"station_id"})

func observeConnections(count int) {
	connectionsGauge.Set(float64(count))
}

func observeTransaction(stationId, eventType string) {
	if len(stationId) == 0 || len(eventType) == 0 {
		return
	}
	transactionCounts.With(prometheus.Labels{"station_id": stationId, "event_type": eventType}).Inc()
}

func observeVerdict(stationId, verdict string) {
	if len(stationId) == 0 || len(verdict) == 0 {
		return
	}
	verdictCounts.With(prometheus.Labels{"station_id": stationId, "verdict": verdict}).Inc()
}

func observeEnergy(stationId string, energyWh int) {
	if len(stationId) == 0 || energyWh < 0 {
		return
	}
	consumedEnergy.With(prometheus.Labels{"station_id": stationId}).Set(float64(energyWh))
}
