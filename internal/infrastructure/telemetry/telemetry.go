package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/mdfe/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Telemetry bundles the providers started from one config section.
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
	DB       *DBTracingPlugin

	cfg    config.TelemetryConfig
	logger *zap.Logger
}

// Setup starts traces, metrics, logs and profiling as configured. Anything
// started before a failure is shut down again.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{cfg: cfg, logger: logger}

	var err error
	if t.Tracer, err = NewTracerProvider(ctx, ConfigFrom(cfg), logger); err != nil {
		return nil, err
	}

	if t.Meter, err = NewMeterProvider(ctx, MetricsConfig{
		Enabled:           cfg.Enabled && cfg.MetricsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.MetricsInterval,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	if t.Logs, err = NewLoggerProvider(ctx, LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	if t.Profiler, err = NewProfiler(ProfilerConfig{
		Enabled:         cfg.ProfilingEnabled,
		ServerAddress:   cfg.ProfilingServerAddr,
		ApplicationName: cfg.ServiceName,
	}, logger); err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}

	if cfg.ProfilingEnabled && cfg.ProfilingSpanProfiles {
		if err := t.Tracer.EnableSpanProfiles(); err != nil {
			logger.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	t.DB = NewDBTracingPlugin(DBTracingConfig{
		Enabled:         cfg.Enabled && cfg.DBTraceEnabled,
		LogFullSQL:      cfg.DBLogFullSQL,
		SlowQueryThresh: cfg.DBSlowQueryThresh,
	}, logger)

	return t, nil
}

// LogCore is the zap core that ships logs to the collector; a no-op core when
// OTLP logs are off.
func (t *Telemetry) LogCore(level zapcore.Level) zapcore.Core {
	if t.cfg.LogsLevel != "" {
		if parsed, err := zapcore.ParseLevel(t.cfg.LogsLevel); err == nil {
			level = parsed
		}
	}
	return NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    t.cfg.ServiceName,
		LoggerProvider: t.Logs,
		Level:          level,
	})
}

// Shutdown stops every provider, in reverse start order.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.Profiler != nil {
		if err := t.Profiler.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.Logs != nil {
		if err := t.Logs.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.Meter != nil {
		if err := t.Meter.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.Tracer != nil {
		if err := t.Tracer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}
