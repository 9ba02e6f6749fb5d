package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/riftduel/duelsync/internal/config"
	"github.com/riftduel/duelsync/internal/logging"
	"github.com/riftduel/duelsync/internal/otel"
)

// runtime owns the ambient sinks shared by serve and client.
type runtime struct {
	start   time.Time
	logs    *logging.SlogManager
	zlog    zerolog.Logger
	otel    *otel.Provider
	closers []io.Closer
}

// newRuntime opens the log file, the optional Graylog and OTel sinks, and builds both loggers.
func newRuntime(name string) (*runtime, error) {
	rt := &runtime{start: time.Now(), logs: logging.NewSlogManager()}
	lc := config.GetLoggingConfig()
	oc := config.GetOTelConfig()

	var out io.Writer = os.Stdout
	opts := logging.Options{Level: lc.Level, Context: logging.ParticipantFromContext}

	if lc.Dir != "" {
		f, err := logging.OpenLogFile(lc.Dir, name, rt.start)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, f)
		opts.File = f
		out = f
	}

	if lc.Graylog.Enabled {
		gw, err := logging.NewGraylogWriter(lc.Graylog.Address)
		if err != nil {
			rt.Close(context.Background())
			return nil, err
		}
		rt.closers = append(rt.closers, gw)
		opts.Graylog = gw
	}

	if oc.Enabled {
		var otelOut io.Writer = os.Stdout
		if lc.Dir != "" {
			f, err := logging.OpenLogFile(lc.Dir, name+".otel", rt.start)
			if err != nil {
				rt.Close(context.Background())
				return nil, err
			}
			rt.closers = append(rt.closers, f)
			otelOut = f
		}
		p, err := otel.New(otel.Config{
			Enabled:      true,
			ServiceName:  oc.ServiceName,
			BatchTimeout: oc.BatchTimeout,
			LogWriter:    otelOut,
			Endpoint:     oc.Endpoint,
			Insecure:     oc.Insecure,
		})
		if err != nil {
			rt.Close(context.Background())
			return nil, err
		}
		rt.otel = p
		opts.Provider = p.LoggerProvider()
	}

	rt.logs.Setup(opts)
	rt.zlog = newZerolog(out, lc.Level)
	return rt, nil
}

// newZerolog builds the logger used by the database and influx layers.
func newZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", logging.ServiceName).Logger()
}

func (rt *runtime) Logger() *slog.Logger {
	return rt.logs.Logger()
}

// Close flushes telemetry and closes every sink, newest first.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error
	if err := rt.logs.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if rt.otel != nil {
		if err := rt.otel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
