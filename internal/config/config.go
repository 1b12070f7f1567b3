package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultHTTPListen         = ":8080"
	defaultHealthPath         = "/healthz"
	defaultReadyPath          = "/readyz"
	defaultMetricsPath        = "/metrics"
	defaultIngestPath         = "/ingest"
	defaultNATSSubject        = "sensoralert.readings"
	defaultNATSIngestStream   = "SENSORALERT_READINGS"
	defaultNATSIngestConsumer = "sensoralert-ingest"
	defaultNATSIngestGroup    = "sensoralert-workers"
	defaultNATSIngestWorkers  = 1
	defaultNATSAckWaitSec     = 30
	defaultNATSNackDelayMS    = 1000
	defaultNATSMaxDeliver     = -1
	defaultNATSMaxAckPending  = 2048
	defaultNATSURL            = "nats://127.0.0.1:4222"
	defaultThresholdBucket    = "thresholds"
	defaultAlertBucket        = "alerts"
	defaultBrowserSubject     = "sensoralert.alerts.browser"
	defaultBrowserBuffer      = 256
	defaultReloadSeconds      = 5
	defaultEvaluateTimeoutSec = 5
	defaultPersistTimeoutSec  = 5
	defaultPersistAttempts    = 3

	// ServiceModeNATS keeps NATS-backed store/ingest settings.
	ServiceModeNATS = "nats"
	// ServiceModeSingle keeps single-instance mode without NATS dependencies.
	ServiceModeSingle = "single"

	// NotifyChannelEmail identifies SMTP transport.
	NotifyChannelEmail = "email"
	// NotifyChannelBrowser identifies in-app/browser transport.
	NotifyChannelBrowser = "browser"
	// NotifyChannelTelegram identifies Telegram transport.
	NotifyChannelTelegram = "telegram"
)

var (
	notifyChannelOrder = []string{
		NotifyChannelEmail,
		NotifyChannelBrowser,
		NotifyChannelTelegram,
	}
	notifyChannelRegistry = map[string]notifyChannelDescriptor{
		NotifyChannelEmail: {
			enabled: func(cfg NotifyConfig) bool { return cfg.Email.Enabled },
			retry:   func(cfg NotifyConfig) RetryConfig { return cfg.Email.Retry },
		},
		NotifyChannelBrowser: {
			enabled: func(cfg NotifyConfig) bool { return cfg.Browser.Enabled },
			retry:   func(cfg NotifyConfig) RetryConfig { return cfg.Browser.Retry },
		},
		NotifyChannelTelegram: {
			enabled: func(cfg NotifyConfig) bool { return cfg.Telegram.Enabled },
			retry:   func(cfg NotifyConfig) RetryConfig { return cfg.Telegram.Retry },
		},
	}
	unsupportedStorePattern               = regexp.MustCompile(`(?m)^\s*\[\[?\s*store(?:\.[^\]\s]+)*\s*\]\]?`)
	unsupportedIngestNATSFixedKeysPattern = regexp.MustCompile(`(?mi)^\s*(?:subject|stream|consumer_name|deliver_group)\s*=`)
	unsupportedBrowserURLPattern          = regexp.MustCompile(`(?si)\[\s*notify\.browser\s*\][^\[]*\burl\s*=`)
)

// notifyChannelDescriptor stores generic accessors for one notify transport.
// Params: config readers for enabled/retry fields.
// Returns: channel metadata used by generic helpers.
type notifyChannelDescriptor struct {
	enabled func(NotifyConfig) bool
	retry   func(NotifyConfig) RetryConfig
}

// Config holds service runtime settings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	Ingest  IngestConfig  `toml:"ingest"`
	Notify  NotifyConfig  `toml:"notify"`
}

// ServiceConfig contains process-level settings.
// Params: name, run mode, reload controls, and evaluation/persistence budgets.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name               string      `toml:"name"`
	Mode               string      `toml:"mode"`
	ReloadEnabled      bool        `toml:"reload_enabled"`
	ReloadIntervalSec  int         `toml:"reload_interval_sec"`
	EvaluateTimeoutSec int         `toml:"evaluate_timeout_sec"`
	PersistTimeoutSec  int         `toml:"persist_timeout_sec"`
	PersistRetry       RetryConfig `toml:"persist_retry"`
}

// EvaluateTimeout returns the per-observation evaluation budget.
// Params: none.
// Returns: timeout duration for one threshold lookup and decision.
func (c ServiceConfig) EvaluateTimeout() time.Duration {
	return time.Duration(c.EvaluateTimeoutSec) * time.Second
}

// PersistTimeout returns the alert persistence budget.
// Params: none.
// Returns: timeout duration covering all persistence attempts for one alert.
func (c ServiceConfig) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutSec) * time.Second
}

// IngestConfig defines inbound reading interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP server endpoints.
// Params: enable flag, listen/endpoints, and optional body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	IngestPath   string `toml:"ingest_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion.
// Params: connection + worker/ack/redelivery policy; stream routing keys are runtime-fixed.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"-"`
	Stream        string   `toml:"-"`
	ConsumerName  string   `toml:"-"`
	DeliverGroup  string   `toml:"-"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// NATSStoreConfig contains fixed JetStream KV controls for the store backend.
// Params: URL and bucket names for threshold and alert records.
// Returns: NATS store backend options.
type NATSStoreConfig struct {
	URL                []string `toml:"url"`
	ThresholdBucket    string   `toml:"threshold_bucket"`
	AlertBucket        string   `toml:"alert_bucket"`
	AllowCreateBuckets bool     `toml:"allow_create_buckets"`
}

// DeriveStoreNATSConfig builds fixed store-backend settings from runtime config.
// Params: full runtime configuration snapshot.
// Returns: non-user-overridable NATS store settings.
func DeriveStoreNATSConfig(cfg Config) NATSStoreConfig {
	urls := normalizeNATSURLs(cfg.Ingest.NATS.URL)
	if len(urls) == 0 {
		urls = []string{defaultNATSURL}
	}
	return NATSStoreConfig{
		URL:                urls,
		ThresholdBucket:    defaultThresholdBucket,
		AlertBucket:        defaultAlertBucket,
		AllowCreateBuckets: true,
	}
}

// NotifyConfig defines outbound notification behavior.
// Params: per-channel transport settings.
// Returns: notification controls.
type NotifyConfig struct {
	Email    EmailNotifier    `toml:"email"`
	Browser  BrowserNotifier  `toml:"browser"`
	Telegram TelegramNotifier `toml:"telegram"`
}

// RetryConfig configures retries for one delivery or persistence path.
// Params: retry toggle, backoff, attempt limits, and logging.
// Returns: retry policy.
type RetryConfig struct {
	Enabled        bool   `toml:"enabled"`
	Backoff        string `toml:"backoff"`
	InitialMS      int    `toml:"initial_ms"`
	MaxMS          int    `toml:"max_ms"`
	MaxAttempts    int    `toml:"max_attempts"`
	LogEachAttempt bool   `toml:"log_each_attempt"`
}

// EmailNotifier defines SMTP channel settings.
// Params: enabled flag, SMTP service URL, recipient list, and retry policy.
// Returns: email sender configuration.
type EmailNotifier struct {
	Enabled bool        `toml:"enabled"`
	URL     string      `toml:"url"`
	From    string      `toml:"from"`
	To      []string    `toml:"to"`
	Retry   RetryConfig `toml:"retry"`
}

// BrowserNotifier defines in-app notification fan-out settings.
// Params: enabled flag, optional NATS subject override flag-free buffer, and retry policy.
// Returns: browser sender configuration.
type BrowserNotifier struct {
	Enabled bool        `toml:"enabled"`
	Subject string      `toml:"-"`
	URL     []string    `toml:"-"`
	Buffer  int         `toml:"buffer"`
	Retry   RetryConfig `toml:"retry"`
}

// TelegramNotifier defines Telegram channel settings.
// Params: enabled flag, bot token, chat ID, API base URL, and retry policy.
// Returns: Telegram sender configuration.
type TelegramNotifier struct {
	Enabled  bool        `toml:"enabled"`
	BotToken string      `toml:"bot_token"`
	ChatID   string      `toml:"chat_id"`
	APIBase  string      `toml:"api_base"`
	Retry    RetryConfig `toml:"retry"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// configMergeHints carries explicit bool-presence markers used for directory overlays.
// Params: sparse fields decoded from one TOML fragment.
// Returns: merge behavior hints for zero-value bool overrides.
type configMergeHints struct {
	Notify notifyMergeHints `toml:"notify"`
}

// notifyMergeHints tracks explicit bool fields in notify section.
// Params: sparse notify values decoded from one TOML fragment.
// Returns: bool-presence markers for merge logic.
type notifyMergeHints struct {
	Email    channelMergeHints `toml:"email"`
	Browser  channelMergeHints `toml:"browser"`
	Telegram channelMergeHints `toml:"telegram"`
}

// channelMergeHints tracks explicit enabled flags in channel sections.
// Params: sparse channel fields decoded from one TOML fragment.
// Returns: channel bool-presence markers for merge logic.
type channelMergeHints struct {
	Enabled *bool `toml:"enabled"`
}

// hasExplicitBool reports whether notify fragment contains explicit bool keys.
// Params: notify merge hints from one TOML fragment.
// Returns: true when at least one bool was explicitly set.
func (h notifyMergeHints) hasExplicitBool() bool {
	return h.Email.Enabled != nil ||
		h.Browser.Enabled != nil ||
		h.Telegram.Enabled != nil
}

// rejectUnsupportedSyntax checks forbidden TOML syntax and returns explicit error.
// Params: raw TOML file body.
// Returns: error when unsupported syntax is detected.
func rejectUnsupportedSyntax(body []byte) error {
	if unsupportedStorePattern.Match(body) {
		return errors.New("store configuration is not supported; store backend settings are fixed and derived from ingest.nats.url")
	}
	if unsupportedIngestNATSFixedKeysPattern.Match(body) {
		return errors.New("ingest.nats.subject/stream/consumer_name/deliver_group are fixed in runtime and must not be configured")
	}
	if unsupportedBrowserURLPattern.Match(body) {
		return errors.New("notify.browser.url is not supported; browser notify NATS URL is derived from ingest.nats.url")
	}
	return nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := rejectUnsupportedSyntax(body); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return cfg, nil
}

// loadFileForMerge reads one TOML file with merge hints.
// Params: file path to config fragment.
// Returns: decoded config plus explicit-bool hints for overlay merge.
func loadFileForMerge(path string) (Config, configMergeHints, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := rejectUnsupportedSyntax(body); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var hints configMergeHints
	if err := toml.Unmarshal(body, &hints); err != nil {
		return Config{}, configMergeHints{}, fmt.Errorf("decode merge hints %q: %w", path, err)
	}
	return cfg, hints, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, hints, err := loadFileForMerge(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment, hints)
	}
	return merged, nil
}

// mergeConfig overlays source onto destination.
// Params: destination config and next fragment.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config, hints configMergeHints) {
	if src.Service != (ServiceConfig{}) {
		dst.Service = src.Service
	}
	if src.Log != (LogConfig{}) {
		dst.Log = src.Log
	}
	if hasIngestConfig(src.Ingest) {
		dst.Ingest = src.Ingest
	}
	if hasNotifyConfig(src.Notify) || hints.Notify.hasExplicitBool() {
		mergeNotifyConfig(&dst.Notify, src.Notify, hints.Notify)
	}
}

// mergeNotifyConfig overlays notify fragment into destination preserving existing sibling fields.
// Params: destination notify config and fragment from one source file.
// Returns: merged notify configuration side-effect in dst.
func mergeNotifyConfig(dst *NotifyConfig, src NotifyConfig, hints notifyMergeHints) {
	mergeEmailNotifier(&dst.Email, src.Email, hints.Email)
	mergeBrowserNotifier(&dst.Browser, src.Browser, hints.Browser)
	mergeTelegramNotifier(&dst.Telegram, src.Telegram, hints.Telegram)
}

// mergeEmailNotifier overlays email transport config preserving other notify fields.
// Params: destination email config and source fragment.
// Returns: merged email configuration side-effect in dst.
func mergeEmailNotifier(dst *EmailNotifier, src EmailNotifier, hints channelMergeHints) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if strings.TrimSpace(src.URL) != "" {
		dst.URL = src.URL
	}
	if strings.TrimSpace(src.From) != "" {
		dst.From = src.From
	}
	if len(src.To) > 0 {
		dst.To = append([]string(nil), src.To...)
	}
	if src.Retry != (RetryConfig{}) {
		dst.Retry = src.Retry
	}
}

// mergeBrowserNotifier overlays browser transport config preserving other notify fields.
// Params: destination browser config and source fragment.
// Returns: merged browser configuration side-effect in dst.
func mergeBrowserNotifier(dst *BrowserNotifier, src BrowserNotifier, hints channelMergeHints) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if src.Buffer != 0 {
		dst.Buffer = src.Buffer
	}
	if src.Retry != (RetryConfig{}) {
		dst.Retry = src.Retry
	}
}

// mergeTelegramNotifier overlays telegram transport config preserving other notify fields.
// Params: destination telegram config and source fragment.
// Returns: merged telegram configuration side-effect in dst.
func mergeTelegramNotifier(dst *TelegramNotifier, src TelegramNotifier, hints channelMergeHints) {
	applyBoolMerge(&dst.Enabled, src.Enabled, hints.Enabled)
	if strings.TrimSpace(src.BotToken) != "" {
		dst.BotToken = src.BotToken
	}
	if strings.TrimSpace(src.ChatID) != "" {
		dst.ChatID = src.ChatID
	}
	if strings.TrimSpace(src.APIBase) != "" {
		dst.APIBase = src.APIBase
	}
	if src.Retry != (RetryConfig{}) {
		dst.Retry = src.Retry
	}
}

// applyBoolMerge merges bool with explicit-value awareness for directory overlays.
// Params: destination bool pointer, source decoded bool, and explicit source marker.
// Returns: merged bool side-effect in dst.
func applyBoolMerge(dst *bool, value bool, explicit *bool) {
	if explicit != nil {
		*dst = *explicit
		return
	}
	if value {
		*dst = true
	}
}

// hasNotifyConfig checks whether notify section contains any explicit values.
// Params: notify configuration fragment.
// Returns: true when section should be merged into destination snapshot.
func hasNotifyConfig(cfg NotifyConfig) bool {
	if cfg.Email.Enabled ||
		strings.TrimSpace(cfg.Email.URL) != "" ||
		strings.TrimSpace(cfg.Email.From) != "" ||
		len(cfg.Email.To) > 0 ||
		cfg.Email.Retry != (RetryConfig{}) {
		return true
	}
	if cfg.Browser.Enabled || cfg.Browser.Buffer != 0 || cfg.Browser.Retry != (RetryConfig{}) {
		return true
	}
	if cfg.Telegram.Enabled ||
		strings.TrimSpace(cfg.Telegram.BotToken) != "" ||
		strings.TrimSpace(cfg.Telegram.ChatID) != "" ||
		strings.TrimSpace(cfg.Telegram.APIBase) != "" ||
		cfg.Telegram.Retry != (RetryConfig{}) {
		return true
	}
	return false
}

// applyDefaults fills omitted config fields with safe defaults.
// Params: cfg pointer to decoded snapshot.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = "sensoralert"
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSeconds
	}
	if cfg.Service.EvaluateTimeoutSec <= 0 {
		cfg.Service.EvaluateTimeoutSec = defaultEvaluateTimeoutSec
	}
	if cfg.Service.PersistTimeoutSec <= 0 {
		cfg.Service.PersistTimeoutSec = defaultPersistTimeoutSec
	}
	if cfg.Service.PersistRetry.MaxAttempts <= 0 {
		cfg.Service.PersistRetry.MaxAttempts = defaultPersistAttempts
	}
	fillRetryDefaults(&cfg.Service.PersistRetry)

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.HealthPath) == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.ReadyPath) == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.MetricsPath) == "" {
		cfg.Ingest.HTTP.MetricsPath = defaultMetricsPath
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.IngestPath) == "" {
		cfg.Ingest.HTTP.IngestPath = defaultIngestPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = 2 << 20
	}
	if cfg.Service.Mode == ServiceModeSingle {
		// Single mode always disables NATS-dependent paths regardless of user flags.
		cfg.Ingest.NATS.Enabled = false
		cfg.Ingest.HTTP.Enabled = true
	} else {
		cfg.Ingest.NATS.URL = normalizeNATSURLs(cfg.Ingest.NATS.URL)
		if len(cfg.Ingest.NATS.URL) == 0 {
			cfg.Ingest.NATS.URL = []string{defaultNATSURL}
		}
		cfg.Ingest.NATS.Subject = defaultNATSSubject
		cfg.Ingest.NATS.Stream = defaultNATSIngestStream
		cfg.Ingest.NATS.ConsumerName = defaultNATSIngestConsumer
		cfg.Ingest.NATS.DeliverGroup = defaultNATSIngestGroup
		if cfg.Ingest.NATS.Workers == 0 {
			cfg.Ingest.NATS.Workers = defaultNATSIngestWorkers
		}
		if cfg.Ingest.NATS.AckWaitSec <= 0 {
			cfg.Ingest.NATS.AckWaitSec = defaultNATSAckWaitSec
		}
		if cfg.Ingest.NATS.NackDelayMS <= 0 {
			cfg.Ingest.NATS.NackDelayMS = defaultNATSNackDelayMS
		}
		if cfg.Ingest.NATS.MaxDeliver == 0 {
			cfg.Ingest.NATS.MaxDeliver = defaultNATSMaxDeliver
		}
		if cfg.Ingest.NATS.MaxAckPending <= 0 {
			cfg.Ingest.NATS.MaxAckPending = defaultNATSMaxAckPending
		}
		if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
			cfg.Ingest.HTTP.Enabled = true
		}
	}

	fillRetryDefaults(&cfg.Notify.Email.Retry)
	if cfg.Notify.Browser.Buffer <= 0 {
		cfg.Notify.Browser.Buffer = defaultBrowserBuffer
	}
	cfg.Notify.Browser.Subject = defaultBrowserSubject
	if cfg.Service.Mode == ServiceModeNATS {
		// Browser fan-out uses the same NATS URL list as ingest/store in multi-instance mode.
		cfg.Notify.Browser.URL = append([]string(nil), cfg.Ingest.NATS.URL...)
	} else {
		cfg.Notify.Browser.URL = nil
	}
	fillRetryDefaults(&cfg.Notify.Browser.Retry)
	if cfg.Notify.Telegram.APIBase == "" {
		cfg.Notify.Telegram.APIBase = "https://api.telegram.org"
	}
	fillRetryDefaults(&cfg.Notify.Telegram.Retry)
}

// fillRetryDefaults normalizes retry policy fields for one path.
// Params: retry policy pointer.
// Returns: policy defaults applied in place.
func fillRetryDefaults(retry *RetryConfig) {
	if retry == nil {
		return
	}
	if retry.Backoff == "" {
		retry.Backoff = "exponential"
	}
	if retry.InitialMS <= 0 {
		retry.InitialMS = 500
	}
	if retry.MaxMS <= 0 {
		retry.MaxMS = 60000
	}
}

// validateConfig validates full runtime configuration.
// Params: cfg snapshot to validate.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	mode := NormalizeServiceMode(cfg.Service.Mode)
	if !IsSupportedServiceMode(mode) {
		return fmt.Errorf("service.mode has unsupported value %q", cfg.Service.Mode)
	}
	if cfg.Service.PersistRetry.MaxAttempts <= 0 {
		return errors.New("service.persist_retry.max_attempts must be >0")
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		return errors.New("ingest.http.listen is required")
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.HealthPath) == "" {
		return errors.New("ingest.http.health_path is required")
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.ReadyPath) == "" {
		return errors.New("ingest.http.ready_path is required")
	}
	if strings.TrimSpace(cfg.Ingest.HTTP.IngestPath) == "" {
		return errors.New("ingest.http.ingest_path is required")
	}
	if mode == ServiceModeSingle {
		if !cfg.Ingest.HTTP.Enabled {
			return errors.New("ingest.http.enabled must be true when service.mode=single")
		}
	}
	if mode == ServiceModeNATS {
		if len(cfg.Ingest.NATS.URL) == 0 {
			return errors.New("ingest.nats.url is required")
		}
		for i, url := range cfg.Ingest.NATS.URL {
			if strings.TrimSpace(url) == "" {
				return fmt.Errorf("ingest.nats.url[%d] is empty", i)
			}
		}
		if cfg.Ingest.NATS.Enabled {
			if cfg.Ingest.NATS.Workers <= 0 {
				return errors.New("ingest.nats.workers must be >0 when ingest.nats.enabled=true")
			}
			if cfg.Ingest.NATS.AckWaitSec <= 0 {
				return errors.New("ingest.nats.ack_wait_sec must be >0 when ingest.nats.enabled=true")
			}
			if cfg.Ingest.NATS.NackDelayMS < 0 {
				return errors.New("ingest.nats.nack_delay_ms must be >=0")
			}
			if cfg.Ingest.NATS.MaxDeliver == 0 || cfg.Ingest.NATS.MaxDeliver < -1 {
				return errors.New("ingest.nats.max_deliver must be -1 or >0")
			}
			if cfg.Ingest.NATS.MaxAckPending <= 0 {
				return errors.New("ingest.nats.max_ack_pending must be >0 when ingest.nats.enabled=true")
			}
		}
	}

	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}

	// Email with an empty URL is allowed: the sender degrades to a logged no-op
	// so development environments do not need SMTP credentials.
	if cfg.Notify.Email.Enabled && strings.TrimSpace(cfg.Notify.Email.URL) != "" && len(cfg.Notify.Email.To) == 0 {
		return errors.New("notify.email.to is required when notify.email.url is set")
	}
	if cfg.Notify.Browser.Enabled && cfg.Notify.Browser.Buffer <= 0 {
		return errors.New("notify.browser.buffer must be >0 when notify.browser.enabled=true")
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when notify.telegram.enabled=true")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram.chat_id is required when notify.telegram.enabled=true")
		}
	}

	return nil
}

// hasIngestConfig reports whether ingest section has explicit values.
// Params: ingest configuration fragment.
// Returns: true when section should be merged into destination snapshot.
func hasIngestConfig(cfg IngestConfig) bool {
	return hasHTTPIngestConfig(cfg.HTTP) || hasNATSIngestConfig(cfg.NATS)
}

// hasHTTPIngestConfig reports whether HTTP ingest section has explicit values.
// Params: HTTP ingest configuration fragment.
// Returns: true when section should be merged.
func hasHTTPIngestConfig(cfg HTTPIngestConfig) bool {
	return cfg.Enabled ||
		strings.TrimSpace(cfg.Listen) != "" ||
		strings.TrimSpace(cfg.HealthPath) != "" ||
		strings.TrimSpace(cfg.ReadyPath) != "" ||
		strings.TrimSpace(cfg.MetricsPath) != "" ||
		strings.TrimSpace(cfg.IngestPath) != "" ||
		cfg.MaxBodyBytes != 0
}

// hasNATSIngestConfig reports whether NATS ingest section has explicit values.
// Params: NATS ingest configuration fragment.
// Returns: true when section should be merged.
func hasNATSIngestConfig(cfg NATSIngestConfig) bool {
	return cfg.Enabled ||
		len(cfg.URL) > 0 ||
		cfg.Workers != 0 ||
		cfg.AckWaitSec != 0 ||
		cfg.NackDelayMS != 0 ||
		cfg.MaxDeliver != 0 ||
		cfg.MaxAckPending != 0
}

// normalizeNATSURLs trims spaces around each configured NATS URL.
// Params: raw URL list from config.
// Returns: normalized URL list preserving element count for validation.
func normalizeNATSURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, len(urls))
	for i := range urls {
		out[i] = strings.TrimSpace(urls[i])
	}
	return out
}

// NormalizeServiceMode canonicalizes service mode and applies default.
// Params: raw mode value from config.
// Returns: normalized mode (`single` by default).
func NormalizeServiceMode(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ServiceModeSingle
	}
	return normalized
}

// IsSupportedServiceMode reports whether mode value is supported.
// Params: normalized mode value.
// Returns: true for known modes.
func IsSupportedServiceMode(mode string) bool {
	switch NormalizeServiceMode(mode) {
	case ServiceModeNATS, ServiceModeSingle:
		return true
	default:
		return false
	}
}

// NotifyChannelNames returns deterministic list of supported channel keys.
// Params: none.
// Returns: ordered channel key list.
func NotifyChannelNames() []string {
	out := make([]string, len(notifyChannelOrder))
	copy(out, notifyChannelOrder)
	return out
}

// NormalizeNotifyChannel canonicalizes notify channel keys.
// Params: raw channel name from config.
// Returns: normalized lowercase channel key.
func NormalizeNotifyChannel(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// IsSupportedNotifyChannel reports whether channel key is supported.
// Params: normalized channel key.
// Returns: true when channel is one of known transports.
func IsSupportedNotifyChannel(channel string) bool {
	_, exists := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	return exists
}

// NotifyChannelEnabled checks if channel transport is enabled globally.
// Params: global notify config and normalized channel key.
// Returns: true when corresponding transport section is enabled.
func NotifyChannelEnabled(cfg NotifyConfig, channel string) bool {
	descriptor, ok := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	if !ok || descriptor.enabled == nil {
		return false
	}
	return descriptor.enabled(cfg)
}

// NotifyChannelRetry returns retry policy for one channel.
// Params: global notify config and channel key.
// Returns: retry policy for channel transport.
func NotifyChannelRetry(cfg NotifyConfig, channel string) RetryConfig {
	descriptor, ok := notifyChannelRegistry[NormalizeNotifyChannel(channel)]
	if !ok || descriptor.retry == nil {
		return RetryConfig{}
	}
	return descriptor.retry(cfg)
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}
