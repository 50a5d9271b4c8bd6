package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the commented configuration template written by init.
const sampleConfig = `# Webshim Configuration File
#
# All options can be overridden with environment variables using the
# WEBSHIM_ prefix, e.g. WEBSHIM_LOGGING_LEVEL=DEBUG.

logging:
  # Log level: DEBUG, INFO, WARN, ERROR
  level: INFO
  # Log format: text, json
  format: text
  # Log output: stdout, stderr, or a file path
  output: stdout

telemetry:
  # Export OpenTelemetry traces over OTLP/gRPC
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    # Continuous profiling via Pyroscope
    enabled: false
    endpoint: http://localhost:4040

# Grace period for in-flight requests on shutdown
shutdown_timeout: 30s

cache:
  # Extraction cache for offline document archives
  root: /var/lib/webshim/cache
  # Advisory cache size cap, reported by cache status
  max_size: 1GiB

content:
  # Registration database for system data archives
  system_store_dir: /var/lib/webshim/system
  # Registration database for application archives
  content_store_dir: /var/lib/webshim/contents
  # Optional patch overlay directory: <patch_dir>/<title>/<category>/
  patch_dir: ""

metrics:
  # Prometheus metrics on GET /metrics
  enabled: false

api:
  enabled: true
  host: 0.0.0.0
  port: 8080
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s

runtime:
  # Title id of the process driving offline manual requests (16 hex digits)
  title_id: "0100000000010000"
`

// InitConfig writes a sample configuration file to the default location
// and returns its path. Refuses to overwrite an existing file unless force
// is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to an explicit path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
