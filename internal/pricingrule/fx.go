package pricingrule

import (
	"github.com/smallbiznis/dutybill/internal/pricingrule/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("pricingrule.repository",
	fx.Provide(repository.NewRepository),
)
