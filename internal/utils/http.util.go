package utils

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go-history/internal/config"
)

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	MaxConnsPerHost       int
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	ConnectTimeout        time.Duration
	RequestTimeout        time.Duration
	ResponseHeaderTimeout time.Duration
	MaxResponseSize       int64
	TLSHandshakeTimeout   time.Duration
}

var (
	httpConfig   *HTTPConfig
	httpClient   *http.Client
	httpClientMu sync.RWMutex
)

// InitHTTPConfig initializes HTTP client configuration from environment
func InitHTTPConfig() {
	httpClientMu.Lock()
	defer httpClientMu.Unlock()
	initHTTPConfigLocked()
}

func initHTTPConfigLocked() {
	envConfig := config.GetEnvConfig()
	httpConfig = &HTTPConfig{
		MaxConnsPerHost:       envConfig.HTTPMaxConnsPerHost,
		MaxIdleConns:          envConfig.HTTPMaxIdleConns,
		MaxIdleConnsPerHost:   envConfig.HTTPMaxIdleConnsPerHost,
		IdleConnTimeout:       envConfig.HTTPIdleConnTimeout,
		ConnectTimeout:        envConfig.HTTPConnectTimeout,
		RequestTimeout:        envConfig.HTTPRequestTimeout,
		ResponseHeaderTimeout: envConfig.HTTPResponseHeaderTimeout,
		MaxResponseSize:       envConfig.HTTPMaxResponseSize,
		TLSHandshakeTimeout:   envConfig.HTTPTLSHandshakeTimeout,
	}

	if httpClient == nil {
		httpClient = createHTTPClient(httpConfig)
	}

	LogInfo("HTTP client initialized with max_conns_per_host=%d, timeout=%v, max_response_size=%d",
		httpConfig.MaxConnsPerHost, httpConfig.RequestTimeout, httpConfig.MaxResponseSize)
}

// createHTTPClient creates a properly configured HTTP client
func createHTTPClient(config *HTTPConfig) *http.Client {
	transport := &http.Transport{
		MaxConnsPerHost:       config.MaxConnsPerHost,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		DialContext: (&net.Dialer{
			Timeout:   config.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:      true,
		MaxResponseHeaderBytes: 4096, // 4KB header limit
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.RequestTimeout,
	}
}

// GetHTTPClient returns the shared HTTP client
func GetHTTPClient() *http.Client {
	httpClientMu.RLock()
	client := httpClient
	httpClientMu.RUnlock()
	if client != nil {
		return client
	}

	httpClientMu.Lock()
	defer httpClientMu.Unlock()
	if httpClient == nil {
		initHTTPConfigLocked()
	}
	return httpClient
}

// GetHTTPConfig returns the current HTTP configuration
func GetHTTPConfig() *HTTPConfig {
	httpClientMu.RLock()
	defer httpClientMu.RUnlock()
	return httpConfig
}

// CloseHTTPClient properly closes the HTTP client and its connections
func CloseHTTPClient() {
	httpClientMu.Lock()
	defer httpClientMu.Unlock()

	if httpClient != nil && httpClient.Transport != nil {
		if transport, ok := httpClient.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
		LogInfo("HTTP client connections closed")
	}
}

// ValidateHTTPConfig validates HTTP configuration values
func ValidateHTTPConfig() error {
	cfg := GetHTTPConfig()
	if cfg == nil {
		return fmt.Errorf("HTTP config not initialized")
	}

	if cfg.MaxConnsPerHost <= 0 {
		return fmt.Errorf("max connections per host must be positive")
	}

	if cfg.MaxIdleConns <= 0 {
		return fmt.Errorf("max idle connections must be positive")
	}

	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if cfg.MaxResponseSize <= 0 {
		return fmt.Errorf("max response size must be positive")
	}

	return nil
}
