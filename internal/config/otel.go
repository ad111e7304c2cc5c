package config

// OtelConfig configures trace export. An empty ExporterEndpoint turns
// tracing off.
type OtelConfig struct {
	ExporterEndpoint string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName      string  `env:"OTEL_SERVICE_NAME" envDefault:"jobmanager"`
	SamplingRate     float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

func (c OtelConfig) Enabled() bool { return c.ExporterEndpoint != "" }
