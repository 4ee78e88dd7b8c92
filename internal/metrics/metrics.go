package metrics

import (
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drand/vmauth/common/log"
)

var (
	// PrivateMetrics about the internal world (go process, private stuff)
	PrivateMetrics = prometheus.NewRegistry()
	// AuthMetrics about signing, verifying and spending authorizations
	AuthMetrics = prometheus.NewRegistry()

	// RequestsSigned (Auth) how many requests were signed, per function
	RequestsSigned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_signed",
		Help: "Number of requests signed",
	}, []string{"program", "function"})
	// SigningLatency (Auth) how long signing a single request takes
	SigningLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "request_signing_duration",
		Help:    "histogram of request signing latencies in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
	// Authorizations (Auth) how many authorizations were built, by outcome
	Authorizations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authorizations",
		Help: "Number of authorizations attempted, by result",
	}, []string{"result"})
	// AuthorizationSize (Auth) how many requests an authorization holds
	AuthorizationSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "authorization_requests",
		Help:    "histogram of the number of requests per authorization",
		Buckets: prometheus.LinearBuckets(1, 1, 16),
	})
	// Verifications (Auth) how many authorizations were verified, by outcome
	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authorization_verifications",
		Help: "Number of authorization verifications, by result",
	}, []string{"result"})
	// SpentRecords (Auth) how many records were marked spent
	SpentRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spent_records",
		Help: "Number of records consumed",
	})
	// DoubleSpends (Auth) how many spends were rejected
	DoubleSpends = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "double_spends",
		Help: "Number of rejected double spends",
	})

	bindOnce sync.Once
)

// Result labels.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

func bindMetrics() {
	bindOnce.Do(func() {
		// The private go-level metrics live in private.
		_ = PrivateMetrics.Register(prometheus.NewGoCollector())
		_ = PrivateMetrics.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

		auth := []prometheus.Collector{
			RequestsSigned,
			SigningLatency,
			Authorizations,
			AuthorizationSize,
			Verifications,
			SpentRecords,
			DoubleSpends,
		}
		for _, c := range auth {
			_ = AuthMetrics.Register(c)
			_ = PrivateMetrics.Register(c)
		}
	})
}

// Start starts a prometheus metrics server with debug endpoints.
func Start(l log.Logger, metricsBind string, pprof http.Handler) net.Listener {
	l.Debugw("metrics private listener started", "at", metricsBind)
	bindMetrics()

	lis, err := net.Listen("tcp", metricsBind)
	if err != nil {
		l.Warnw("metrics listen failed", "err", err)
		return nil
	}
	s := http.Server{Addr: lis.Addr().String()}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(PrivateMetrics, promhttp.HandlerOpts{Registry: PrivateMetrics}))
	mux.Handle("/metrics/auth", AuthHandler())

	if pprof != nil {
		mux.Handle("/debug/pprof/", pprof)
	}

	mux.HandleFunc("/debug/gc", func(w http.ResponseWriter, req *http.Request) {
		runtime.GC()
		fmt.Fprintf(w, "GC run complete")
	})
	s.Handler = mux
	go func() {
		l.Warnw("metrics listen finished", "err", s.Serve(lis))
	}()
	return lis
}

// AuthHandler exposes AuthMetrics only.
func AuthHandler() http.Handler {
	bindMetrics()
	return promhttp.HandlerFor(AuthMetrics, promhttp.HandlerOpts{Registry: AuthMetrics})
}
