package sweetiebot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sweetie_commands_processed_total",
	Help: "Number of bot commands run, by command name",
}, []string{"command"})

var commandsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sweetie_commands_rejected_total",
	Help: "Number of bot commands that were not run, by reason",
}, []string{"reason"})

var hookPanics = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sweetie_hook_panics_total",
	Help: "Number of panics recovered from module hooks",
}, []string{"hook"})

var guildsConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "sweetie_guilds",
	Help: "Number of guilds the bot is currently attached to",
})
