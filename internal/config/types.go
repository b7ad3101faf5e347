package config

import "strings"

// Environment identifies the runtime environment spawnpool runs in.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// PoolKind selects the template type a manifest entry builds.
type PoolKind string

const (
	// KindPrefab builds spatial scene nodes.
	KindPrefab PoolKind = "prefab"
	// KindAsset builds plain data assets.
	KindAsset PoolKind = "asset"
)

func normalise(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
