package trip

import (
	"github.com/smallbiznis/dutybill/internal/trip/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("trip.repository",
	fx.Provide(repository.NewRepository),
)
