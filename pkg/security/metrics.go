package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decryptFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatrelay_decrypt_failures_total",
	Help: "Message bodies that failed authenticated decryption on read.",
})
