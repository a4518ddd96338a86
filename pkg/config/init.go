package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoBrowse Configuration File
#
# Values can be overridden with environment variables using the
# DITTOBROWSE_ prefix, e.g. DITTOBROWSE_LOGGING_LEVEL=DEBUG.
`

// InitConfig writes a sample configuration to the default location.
//
// Returns the path of the written file. Fails if the file already exists and
// force is false.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath writes a sample configuration to configPath, creating
// parent directories as needed.
func InitConfigToPath(configPath string, force bool) error {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as a commented YAML document.
func generateYAMLWithComments(cfg *Config) (string, error) {
	doc := mapping(
		field("logging", "Logging output", mapping(
			field("level", "DEBUG, INFO, WARN or ERROR", scalar(cfg.Logging.Level)),
			field("format", "text or json", scalar(cfg.Logging.Format)),
			field("output", "stdout, stderr or a file path", scalar(cfg.Logging.Output)),
		)),
		field("server", "Server-wide settings", mapping(
			field("shutdown_timeout", "Maximum time to wait for adapters on shutdown", scalar(cfg.Server.ShutdownTimeout)),
			field("metrics", "Prometheus endpoint (/metrics)", mapping(
				field("enabled", "", scalar(cfg.Server.Metrics.Enabled)),
				field("port", "", scalar(cfg.Server.Metrics.Port)),
			)),
		)),
		field("root", "Browsing root: filesystem, memory (demo tree), badger or s3.\nOnly the section matching the type is used.", mapping(
			field("type", "", scalar(cfg.Root.Type)),
			field("filesystem", "", anyMapping(cfg.Root.Filesystem)),
			field("badger", "db_path, in_memory, block_cache_size_mb, index_cache_size_mb", anyMapping(cfg.Root.Badger)),
			field("s3", "region, bucket, prefix, endpoint, access_key_id, secret_access_key,\nmax_retries, timeout, max_object_size", anyMapping(cfg.Root.S3)),
		)),
		field("browse", "Sessions and presentation", mapping(
			field("session_ttl", "Idle sessions are closed after this long (0 = never)", scalar(cfg.Browse.SessionTTL)),
			field("reap_interval", "", scalar(cfg.Browse.ReapInterval)),
			field("max_sessions", "", scalar(cfg.Browse.MaxSessions)),
			field("relative_time", "Render modification times as \"3 hours ago\"", scalar(cfg.Browse.RelativeTime)),
			field("time_format", "Go layout for absolute modification times", scalar(cfg.Browse.TimeFormat)),
		)),
		field("adapters", "Protocol adapters", mapping(
			field("http", "JSON/XDR browsing API", mapping(
				field("enabled", "", scalar(cfg.Adapters.HTTP.Enabled)),
				field("port", "", scalar(cfg.Adapters.HTTP.Port)),
				field("read_timeout", "", scalar(cfg.Adapters.HTTP.ReadTimeout)),
				field("write_timeout", "", scalar(cfg.Adapters.HTTP.WriteTimeout)),
				field("idle_timeout", "", scalar(cfg.Adapters.HTTP.IdleTimeout)),
				field("shutdown_timeout", "", scalar(cfg.Adapters.HTTP.ShutdownTimeout)),
				field("rate_limit", "Per-client throttling (0 = unlimited)", mapping(
					field("requests_per_second", "", scalar(cfg.Adapters.HTTP.RateLimit.RequestsPerSecond)),
					field("burst", "", scalar(cfg.Adapters.HTTP.RateLimit.Burst)),
				)),
			)),
		)),
	)

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to generate config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to generate config: %w", err)
	}

	return buf.String(), nil
}

type kv struct {
	key   *yaml.Node
	value *yaml.Node
}

func field(key, comment string, value *yaml.Node) kv {
	return kv{
		key:   &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key, HeadComment: comment},
		value: value,
	}
}

func mapping(fields ...kv) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range fields {
		n.Content = append(n.Content, f.key, f.value)
	}
	return n
}

// anyMapping renders a backend option map with sorted keys.
func anyMapping(m map[string]any) *yaml.Node {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]kv, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, field(k, "", scalar(m[k])))
	}
	return mapping(fields...)
}

func scalar(v any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch val := v.(type) {
	case string:
		n.Tag, n.Value = "!!str", val
	case bool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(val)
	case int:
		n.Tag, n.Value = "!!int", strconv.Itoa(val)
	case int64:
		n.Tag, n.Value = "!!int", strconv.FormatInt(val, 10)
	case float64:
		n.Tag, n.Value = "!!float", strconv.FormatFloat(val, 'f', -1, 64)
	case time.Duration:
		n.Tag, n.Value = "!!str", val.String()
	default:
		n.Tag, n.Value = "!!str", fmt.Sprint(val)
	}
	return n
}
