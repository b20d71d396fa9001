package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log는 전역 로거 인스턴스
var Log *zap.Logger

var fileWriter *lumberjack.Logger

// LogConfig는 로거 설정
type LogConfig struct {
	Level      string
	Output     string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// InitLogger initializes the global zap logger. Output is one of
// "console", "file" or "both"; anything else falls back to console.
func InitLogger(cfg LogConfig) error {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)

	var core zapcore.Core

	switch cfg.Output {
	case "file":
		fileWriter = newFileWriter(cfg)
		core = zapcore.NewCore(fileEncoder, zapcore.AddSync(fileWriter), level)
	case "both":
		fileWriter = newFileWriter(cfg)
		core = zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
			zapcore.NewCore(fileEncoder, zapcore.AddSync(fileWriter), level),
		)
	default:
		core = zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)
	}

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return nil
}

// newFileWriter는 로테이션되는 로그 파일 writer를 생성합니다
func newFileWriter(cfg LogConfig) *lumberjack.Logger {
	_ = os.MkdirAll(filepath.Dir(cfg.FilePath), 0755)

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		LocalTime:  true,
		Compress:   true,
	}
}

// Close flushes the logger and closes the log file, if any.
func Close() {
	if Log != nil {
		_ = Log.Sync()
	}
	if fileWriter != nil {
		_ = fileWriter.Close()
	}
}

// Sync는 로거 버퍼를 플러시합니다
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

// Info는 info 레벨 로그를 출력합니다
func Info(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Info(msg, fields...)
	}
}

// Warn는 warn 레벨 로그를 출력합니다
func Warn(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Warn(msg, fields...)
	}
}

// Error는 error 레벨 로그를 출력합니다
func Error(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Error(msg, fields...)
	}
}

// Fatal는 fatal 레벨 로그를 출력하고 프로그램을 종료합니다
func Fatal(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Fatal(msg, fields...)
	}
}
