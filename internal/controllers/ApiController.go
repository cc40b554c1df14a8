package controllers

import (
	"chatstat/internal/models"
	"chatstat/internal/providers"
	"chatstat/internal/services"
	"chatstat/internal/statistic"
	"errors"
	"fmt"
	json "github.com/goccy/go-json"
	"net/http"
	"strconv"
)

const maxRequestBodySize = 4 << 20 // 4 MB

type ApiController struct {
	logger  providers.Logger
	service services.ActivityServiceInterface
	cache   providers.CacheProviderInterface
}

func NewApiController(logger providers.Logger, service services.ActivityServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
		cache:   cache,
	}
}

type cursorPayload struct {
	Community uint64  `json:"community"`
	Channel   uint64  `json:"channel"`
	Value     float64 `json:"value"`
}

type colorPayload struct {
	UserID uint64 `json:"user_id"`
	Color  string `json:"color"`
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps storage errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, services.ErrInvalidRange),
		errors.Is(err, models.ErrBeforeEpoch),
		errors.Is(err, models.ErrHourRange),
		errors.Is(err, models.ErrPath),
		errors.Is(err, statistic.ErrInvalidColor):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (ac *ApiController) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %s", r.Method, r.URL.Path, err)
		http.Error(w, "Internal Server Error", status)
		return
	}
	ac.logger.Debugf(providers.GetLogTypeByRequestType(r.Method), "%s %s rejected: %s", r.Method, r.URL.Path, err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func getCommunity(r *http.Request) (string, error) {
	community := r.URL.Query().Get("community")
	if community == "" {
		return "", badRequest("community is required")
	}
	return community, nil
}

// parseDay reads an epoch day query parameter, falling back to def when absent.
func parseDay(r *http.Request, name string, def models.EpochDay) (models.EpochDay, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("%s must be an epoch day", name)
	}
	return models.EpochDay(v), nil
}

func parseRange(r *http.Request, clock *models.Clock) (models.EpochDay, models.EpochDay, error) {
	end, err := parseDay(r, "end", clock.NowEpochDay())
	if err != nil {
		return 0, 0, err
	}
	start, err := parseDay(r, "start", end)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseID(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, badRequest("%s must be a numeric id", name)
	}
	return v, nil
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, r *http.Request, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, data)
		return
	}

	result, err := compute()
	if err != nil {
		ac.fail(w, r, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		ac.fail(w, r, err)
		return
	}

	ac.cache.Set(cacheKey, gson)
	writeJSON(w, http.StatusOK, gson)
}

// UpdateUsers ingests a batch of user updates for one community.
func (ac *ApiController) UpdateUsers(w http.ResponseWriter, r *http.Request) {
	community, err := getCommunity(r)
	if err != nil {
		ac.fail(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var batch []models.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		ac.fail(w, r, badRequest("invalid batch: %s", err))
		return
	}
	if err := ac.service.UpdateUsers(community, batch); err != nil {
		ac.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// GetActivity returns the merged records of users active in [start, end].
// Cached responses are keyed by the community write generation.
func (ac *ApiController) GetActivity(w http.ResponseWriter, r *http.Request) {
	community, err := getCommunity(r)
	if err != nil {
		ac.fail(w, r, err)
		return
	}
	start, end, err := parseRange(r, ac.service.Clock())
	if err != nil {
		ac.fail(w, r, err)
		return
	}

	key := fmt.Sprintf("activity:%s:%d:%d:%d", community, ac.service.Generation(community), start, end)
	ac.serveFromCacheOrCompute(w, r, key, func() (any, error) {
		return ac.service.CollectData(community, start, end)
	})
}

// GetColors returns user id to color for the users active in [start, end].
func (ac *ApiController) GetColors(w http.ResponseWriter, r *http.Request) {
	community, err := getCommunity(r)
	if err != nil {
		ac.fail(w, r, err)
		return
	}
	start, end, err := parseRange(r, ac.service.Clock())
	if err != nil {
		ac.fail(w, r, err)
		return
	}
	users, err := ac.service.CollectData(community, start, end)
	if err != nil {
		ac.fail(w, r, err)
		return
	}

	colors := make(map[string]string)
	for _, uc := range ac.service.Colors(users) {
		colors[strconv.FormatUint(uc.User.ID, 10)] = uc.Color
	}
	gson, err := json.Marshal(colors)
	if err != nil {
		ac.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gson)
}

func (ac *ApiController) SetColor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload colorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ac.fail(w, r, badRequest("invalid color: %s", err))
		return
	}
	if err := ac.service.SetColor(payload.UserID, payload.Color); err != nil {
		ac.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) GetCursor(w http.ResponseWriter, r *http.Request) {
	community, err := parseID(r, "community")
	if err != nil {
		ac.fail(w, r, err)
		return
	}
	channel, err := parseID(r, "channel")
	if err != nil {
		ac.fail(w, r, err)
		return
	}

	value, ok := ac.service.Cursor(community, channel)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	gson, err := json.Marshal(cursorPayload{Community: community, Channel: channel, Value: value})
	if err != nil {
		ac.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gson)
}

func (ac *ApiController) SetCursor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload cursorPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		ac.fail(w, r, badRequest("invalid cursor: %s", err))
		return
	}
	ac.service.SetCursor(payload.Community, payload.Channel, payload.Value)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) ClearCursors(w http.ResponseWriter, r *http.Request) {
	ac.service.ClearCursors()
	w.WriteHeader(http.StatusNoContent)
}
