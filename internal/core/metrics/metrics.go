package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_events_total", Help: "Authentication events by operation and outcome"},
		[]string{"op", "outcome"},
	)
	userMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "user_mutations_total", Help: "User management mutations by operation and outcome"},
		[]string{"op", "outcome"},
	)
)

func init() { prometheus.MustRegister(authEvents, userMutations) }

// Auth op: signup / signin / login / token；outcome 为低基数的结果分类
func Auth(op, outcome string) { authEvents.WithLabelValues(op, outcome).Inc() }

func UserMutation(op, outcome string) { userMutations.WithLabelValues(op, outcome).Inc() }
