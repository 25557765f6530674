package constants

// DefaultEnvPath is the default path to the .env file
const DefaultEnvPath = "./.env"

// DefaultConfigPath is the default path to the config.toml file
const DefaultConfigPath = "./config.toml"

// ConfigEnvVar overrides DefaultConfigPath when the --config flag is absent
const ConfigEnvVar = "SEQUENCER_CONFIG"
