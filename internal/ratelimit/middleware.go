// Package ratelimit throttles the daemon's HTTP surface. The display is a
// LAN service, but the back-office proxy endpoints fan out to a remote API
// and must not be hammered by a misbehaving front end.
package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Middleware limits each client IP to rpm requests per minute, tracked in
// Redis so limits hold across daemon restarts.
func Middleware(client *redis.Client, rpm int) (func(http.Handler) http.Handler, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "display:ratelimit",
	})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: store: %w", err)
	}
	instance := limiter.New(store, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(rpm),
	})
	mw := mhttp.NewMiddleware(instance)
	return mw.Handler, nil
}
