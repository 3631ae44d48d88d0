package log

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

func init() { logger.Store(zap.NewNop()) }

// Init builds the process logger: JSON to stdout, plus file when set.
func Init(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	if lvl, err := zapcore.ParseLevel(strings.ToLower(level)); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return l, nil
}

// SetLogger replaces the logger used by every helper in this package and by zap.L().
func SetLogger(l *zap.Logger) {
	logger.Store(l)
	zap.ReplaceGlobals(l)
}

func L() *zap.Logger { return logger.Load() }

func requestFields(c *fiber.Ctx, kind, action string) []zap.Field {
	fs := []zap.Field{zap.String("kind", kind), zap.String("action", action)}
	if c == nil {
		return fs
	}
	fs = append(fs,
		zap.String("ip", c.IP()),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
	)
	if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
		fs = append(fs, zap.String("req_id", rid))
	}
	return fs
}

func withFields(fs []zap.Field, fields map[string]any) []zap.Field {
	if len(fields) > 0 {
		fs = append(fs, zap.Any("fields", fields))
	}
	return fs
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, withFields(requestFields(c, "info", action), fields)...)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, withFields(requestFields(c, "audit", action), fields)...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, withFields(requestFields(c, "security", action), fields)...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	fs := withFields(requestFields(c, "error", action), fields)
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	L().Error(action, fs...)
}

// AccessLog logs one line per request after the handler chain has run.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		fs := requestFields(c, "access", "http.request")
		fs = append(fs, zap.Int64("latency_ms", time.Since(start).Milliseconds()))
		if err != nil {
			fs = append(fs, zap.Error(err))
		}
		L().Info("http.request", fs...)
		return err
	}
}
