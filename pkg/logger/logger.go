// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

type ctxKey string

// RequestIDKey 请求ID在上下文中的键
const RequestIDKey ctxKey = "request_id"

// WithRequestID 将请求ID写入上下文
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFrom 从上下文读取请求ID
func RequestIDFrom(ctx context.Context) string {
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// SchedulerLogger 排课引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建排课引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	l := Get().With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// With 返回附加了算法名称的日志器
func (l *SchedulerLogger) With(algorithm string) *SchedulerLogger {
	sub := l.base.With().Str("algorithm", algorithm).Logger()
	return &SchedulerLogger{base: &sub}
}

// StartRun 记录排课开始
func (l *SchedulerLogger) StartRun(runID string, subjects, hours, slots int) {
	l.base.Info().
		Str("run_id", runID).
		Int("subjects", subjects).
		Int("required_hours", hours).
		Int("slots", slots).
		Msg("开始生成课表")
}

// Generation 记录遗传算法单代统计
func (l *SchedulerLogger) Generation(gen, best, bestSoFar int, mean float64, worst int) {
	l.base.Debug().
		Int("generation", gen).
		Int("best", best).
		Int("best_so_far", bestSoFar).
		Float64("mean", mean).
		Int("worst", worst).
		Msg("完成一代进化")
}

// Improvement 记录局部搜索找到更优解
func (l *SchedulerLogger) Improvement(iteration, fitness int) {
	l.base.Debug().
		Int("iteration", iteration).
		Int("fitness", fitness).
		Msg("发现更优解")
}

// ConstraintViolation 记录约束违反
func (l *SchedulerLogger) ConstraintViolation(constraint, details string) {
	l.base.Warn().
		Str("constraint", constraint).
		Str("details", details).
		Msg("约束违反")
}

// Unplaced 记录无法安排的课时
func (l *SchedulerLogger) Unplaced(subjectID string, hour int, reason string) {
	l.base.Warn().
		Str("subject_id", subjectID).
		Int("hour", hour).
		Str("reason", reason).
		Msg("课时无法安排")
}

// RunCancelled 记录排课提前终止
func (l *SchedulerLogger) RunCancelled(runID string, reason error, bestFitness int) {
	l.base.Warn().
		Str("run_id", runID).
		Err(reason).
		Int("best_fitness", bestFitness).
		Msg("排课提前终止，返回当前最优解")
}

// RunComplete 记录排课完成
func (l *SchedulerLogger) RunComplete(runID string, duration time.Duration, fitness int, quality float64) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Int("fitness", fitness).
		Float64("quality_score", quality).
		Msg("课表生成完成")
}
