package main

import (
	"github.com/calvinalkan/cachecore/internal/config"
	"github.com/calvinalkan/cachecore/internal/wiring"
	"github.com/calvinalkan/cachecore/pkg/cache"
)

func buildManager(cfg config.Config) (*cache.Manager, func(), error) {
	return wiring.BuildManager(cfg)
}
