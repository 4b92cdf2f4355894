package config

type AppConfig struct {
	EngineConfig *EngineConfig
}

func New() *AppConfig {
	return &AppConfig{
		EngineConfig: NewEngineConfig(),
	}
}
