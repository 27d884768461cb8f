package config

// Deployment environments. Staging is held to the same configuration
// requirements as production.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether env enforces production requirements
func IsProductionLike(env string) bool {
	return env == EnvProduction || env == EnvStaging
}
