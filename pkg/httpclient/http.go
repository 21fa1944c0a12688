package httpclient

import (
	"net"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/circuitbreaker"
	"github.com/Meesho/BharatMLStack/catalog-sync/pkg/metric"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	defaultDialTimeout      = 30 * time.Second
	defaultKeepAliveTimeout = 30 * time.Second
	defaultIdleConnTimeout  = 90 * time.Second
	defaultMaxIdleConns     = 100
)

type Config struct {
	// Name identifies the dependency in metrics and breaker logs.
	Name      string
	Endpoint  string
	Timeout   time.Duration
	CBConfig  *circuitbreaker.Config
	Transport *TransportConfig
}

type TransportConfig struct {
	DialTimeout         time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	KeepAliveTimeout    time.Duration
}

type HTTPClient struct {
	CoreClient     *http.Client
	Endpoint       string
	name           string
	circuitBreaker circuitbreaker.CircuitBreaker[*http.Request, *http.Response]
}

type pathPattern struct {
	regex       *regexp.Regexp
	replacement string
}

var patterns = []pathPattern{
	{
		regex:       regexp.MustCompile(`/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`),
		replacement: "/{uuid}",
	},
	{
		regex:       regexp.MustCompile(`/\d+`),
		replacement: "/{id}",
	},
}

func NewConnFromConfig(config *Config) *HTTPClient {
	var cb circuitbreaker.CircuitBreaker[*http.Request, *http.Response]
	if config.CBConfig != nil {
		cb = circuitbreaker.NewFailSafe[*http.Request, *http.Response](*config.CBConfig)
	}
	return &HTTPClient{
		CoreClient:     getHTTPClient(config),
		Endpoint:       config.Endpoint,
		name:           config.Name,
		circuitBreaker: cb,
	}
}

func getHTTPClient(config *Config) *http.Client {
	transport := config.Transport
	if transport == nil {
		transport = &TransportConfig{}
	}
	log.Debug().Msgf("Creating http client %s with config: %+v", config.Name, config)
	return &http.Client{
		Transport: otelhttp.NewTransport(getHttpTransportFromConfig(transport)),
		Timeout:   config.Timeout,
	}
}

func getHttpTransportFromConfig(transport *TransportConfig) *http.Transport {
	dialTimeout, keepAlive, idle := defaultDialTimeout, defaultKeepAliveTimeout, defaultIdleConnTimeout
	maxIdle, maxIdlePerHost := defaultMaxIdleConns, defaultMaxIdleConns
	if transport.DialTimeout > 0 {
		dialTimeout = transport.DialTimeout
	}
	if transport.KeepAliveTimeout > 0 {
		keepAlive = transport.KeepAliveTimeout
	}
	if transport.IdleConnTimeout > 0 {
		idle = transport.IdleConnTimeout
	}
	if transport.MaxIdleConns > 0 {
		maxIdle = transport.MaxIdleConns
	}
	if transport.MaxIdleConnsPerHost > 0 {
		maxIdlePerHost = transport.MaxIdleConnsPerHost
	}
	transporter := http.DefaultTransport.(*http.Transport).Clone()
	transporter.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext
	transporter.MaxIdleConns = maxIdle
	transporter.MaxIdleConnsPerHost = maxIdlePerHost
	transporter.IdleConnTimeout = idle
	return transporter
}

// Do is a wrapper around http.Client.Do that emits latency and count metrics per
// normalised path and runs through the circuit breaker when one is configured.
func (h *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	var resp *http.Response
	var err error
	if h.circuitBreaker == nil {
		resp, err = h.CoreClient.Do(req)
	} else {
		resp, err = h.circuitBreaker.Execute(req, h.CoreClient.Do)
	}
	if resp == nil {
		if os.IsTimeout(err) {
			log.Error().Err(err).Msgf("Request to %s timed out", h.name)
			h.emitMetrics(req, startTime, http.StatusGatewayTimeout)
			return nil, err
		}
		// no status code is available when the request never completed
		h.emitMetrics(req, startTime, 0)
		return nil, err
	}
	h.emitMetrics(req, startTime, resp.StatusCode)
	return resp, err
}

func (h *HTTPClient) emitMetrics(req *http.Request, startTime time.Time, statusCode int) {
	tags := metric.BuildExternalHTTPServiceTags(h.name, getNormalizedPath(req.URL.Path), req.Method, statusCode)
	metric.Timing(metric.ExternalApiRequestLatency, time.Since(startTime), tags)
	metric.Incr(metric.ExternalApiRequestCount, tags)
}

func getNormalizedPath(path string) string {
	normalizedPath := path
	for _, pattern := range patterns {
		normalizedPath = pattern.regex.ReplaceAllString(normalizedPath, pattern.replacement)
	}
	return normalizedPath
}
