package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go-history/internal/config"
	"go-history/internal/utils"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

const maxRequestBody = 1 << 20

func setHeader(w http.ResponseWriter, status int, responseData string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(responseData))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		setHeader(w, http.StatusInternalServerError, `{"status":false, "error": "Failed to marshal data"}`)
		return
	}
	setHeader(w, status, string(data))
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	resp, _ := json.Marshal(map[string]any{
		"status": false,
		"code":   code,
		"error":  message,
	})
	setHeader(w, status, string(resp))
}

// writeError maps a categorized error onto its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		utils.LogErrorWithContext("http", "request failed", err)
	}
	writeJSONError(w, status, utils.GetErrorCode(err), err.Error())
}

func statusForError(err error) int {
	switch utils.GetErrorType(err) {
	case utils.ErrorTypeValidation:
		return http.StatusBadRequest
	case utils.ErrorTypeNotFound:
		return http.StatusNotFound
	case utils.ErrorTypeConflict:
		return http.StatusConflict
	case utils.ErrorTypeNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return utils.NewValidationError("BODY_READ_FAILED", "Failed to read request body", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return utils.NewValidationError("INVALID_JSON", "Invalid JSON format", errors.Join(utils.ErrInvalidDataFormat, err))
	}
	return nil
}

func getCORSOrigins() string {
	envConfig := config.GetEnvConfig()
	origins := envConfig.CORSAllowedOrigins
	if origins == "" {
		if envConfig.IsProduction() {
			utils.LogFatal("CORS_ALLOWED_ORIGINS must be set in production environment")
		}
		return "http://localhost:3500,http://127.0.0.1:3500"
	}
	return origins
}

// corsOptions builds the rs/cors policy for a comma separated origin list.
// "*" allows every origin.
func corsOptions(allowedOrigins string) cors.Options {
	var origins []string
	for _, origin := range strings.Split(allowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}
}

// CORSMiddleware answers preflight requests and decorates responses for the
// origins listed in CORS_ALLOWED_ORIGINS.
func CORSMiddleware() func(http.Handler) http.Handler {
	opts := corsOptions(getCORSOrigins())
	utils.LogDebug("CORS origins=%v methods=%v", opts.AllowedOrigins, opts.AllowedMethods)
	return cors.New(opts).Handler
}

func GetLogFolder() string {
	return config.GetEnvConfig().BaseLogFolder
}

func GetDatabaseFolder() string {
	return filepath.Dir(config.GetEnvConfig().GetDatabasePath())
}

func ensureDirectoryExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return err
		}
		utils.LogInfo("Created directory: %s", dirPath)
	}
	return nil
}

// EnsureStorageDirectories creates the folders the configured journal backends write into.
func EnsureStorageDirectories() error {
	env := config.GetEnvConfig()
	if env.UsesFileStorage() {
		if err := ensureDirectoryExists(GetLogFolder()); err != nil {
			return err
		}
	}
	if env.UsesSQLiteStorage() {
		return ensureDirectoryExists(GetDatabaseFolder())
	}
	return nil
}

// rateLimitCapacity bounds the number of tracked clients; the least recently
// seen client is dropped first.
const rateLimitCapacity = 4096

var (
	rateLimitClients = newClientCache(rateLimitCapacity)
	clientMutex      sync.Mutex
)

func newClientCache(size int) *lru.Cache {
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return cache
}

func getRateLimitConfig() (requestsPerSecond float64, burstSize int) {
	envConfig := config.GetEnvConfig()
	return envConfig.RateLimitRPS, envConfig.RateLimitBurst
}

// getClientKey identifies the client by the address middleware.RealIP has
// already resolved into RemoteAddr. Forwarding headers are not read here.
func getClientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getClientLimiter(key string, rps float64, burst int) *rate.Limiter {
	clientMutex.Lock()
	defer clientMutex.Unlock()
	if v, ok := rateLimitClients.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	rateLimitClients.Add(key, limiter)
	return limiter
}

// RateLimitMiddleware applies a per-client token bucket.
func RateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !config.GetEnvConfig().IsRateLimitEnabled() {
			next(w, r)
			return
		}

		rps, burst := getRateLimitConfig()
		limiter := getClientLimiter(getClientKey(r), rps, burst)
		now := time.Now()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(time.Second).Unix(), 10))
		if !limiter.AllowN(now, 1) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			setHeader(w, http.StatusTooManyRequests, `{"status":false, "error": "Rate limit exceeded"}`)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))

		next(w, r)
	}
}

func MethodMiddleware(allowedMethods ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(allowedMethods, r.Method) {
				w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
				setHeader(w, http.StatusMethodNotAllowed, `{"status":false, "error": "Method not allowed"}`)
				return
			}

			next(w, r)
		}
	}
}
