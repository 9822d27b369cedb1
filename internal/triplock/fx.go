package triplock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("triplock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewTripLock),
	fx.Invoke(func(lc fx.Lifecycle, client *redis.Client) {
		if client == nil {
			return
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}),
)
