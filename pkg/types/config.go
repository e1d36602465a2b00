package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "docxml/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ExtractorBackend identifies the tool that turns PDF bytes into text.
type ExtractorBackend string

const (
	ExtractorNative    ExtractorBackend = "native"
	ExtractorTika      ExtractorBackend = "tika"
	ExtractorContainer ExtractorBackend = "container"
)

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the PDF extractor: native, tika, or container.
	Backend ExtractorBackend `json:"backend" yaml:"backend"`

	// TikaURL is the base URL of an Apache Tika server (e.g. "http://localhost:9998").
	TikaURL string `json:"tika_url" yaml:"tika_url"`

	// TikaAPIKey is sent as X-Tika-API-Key when non-empty.
	TikaAPIKey string `json:"tika_api_key,omitempty" yaml:"tika_api_key,omitempty"`

	// ContainerImage is the pdftotext image used by the container backend.
	ContainerImage string `json:"container_image" yaml:"container_image"`

	// MaxRetries bounds retries on rate-limited or busy Tika responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ClassifierMode selects the line classification behavior.
type ClassifierMode string

const (
	// ModeStructured classifies lines into headings, paragraphs, lists, and tables.
	ModeStructured ClassifierMode = "structured"

	// ModeLegacy emits one paragraph per blank-line separated chunk.
	ModeLegacy ClassifierMode = "legacy"
)

// ClassifierConfig holds settings for page segmentation and line classification.
type ClassifierConfig struct {
	Mode ClassifierMode `json:"mode" yaml:"mode"`

	// PageDelimiter separates pages in extractor output (default "\n\n\n").
	PageDelimiter string `json:"page_delimiter" yaml:"page_delimiter"`
}

// StoreConfig holds settings for the job record store.
type StoreConfig struct {
	// Path is the SQLite database file (e.g. "data/docxml.db").
	Path string `json:"path" yaml:"path"`
}

// SubmissionConfig holds limits applied when a job is submitted.
type SubmissionConfig struct {
	// StagingDir is the directory where uploaded sources wait for their Run.
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`

	// MaxBytes is the largest accepted upload (default 5 MiB).
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// AllowedExtensions lists accepted source extensions, lower case with dot.
	AllowedExtensions []string `json:"allowed_extensions" yaml:"allowed_extensions"`
}

// QueueConfig holds settings for the background worker pool.
type QueueConfig struct {
	// Workers is the number of concurrent Runs (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// Size is the buffered task capacity (default 256).
	Size int `json:"size" yaml:"size"`

	// RunTimeout bounds one Run. Zero means no timeout.
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (e.g. ":5000").
	Addr string `json:"addr" yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown of the server and queue.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Config groups all component configurations.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Submission SubmissionConfig `json:"submission" yaml:"submission"`
	Queue      QueueConfig      `json:"queue" yaml:"queue"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`
}
