package catalogsync

import (
	"github.com/smallbiznis/storefront/internal/catalogsync/repository"
	"github.com/smallbiznis/storefront/internal/catalogsync/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalogsync.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
