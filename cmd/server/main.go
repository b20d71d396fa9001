package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/yourusername/canary-bridge/internal/api"
	"github.com/yourusername/canary-bridge/internal/bridge"
	"github.com/yourusername/canary-bridge/internal/canary"
	"github.com/yourusername/canary-bridge/internal/coordinator"
	"github.com/yourusername/canary-bridge/internal/core"
	"github.com/yourusername/canary-bridge/internal/feed"
	"github.com/yourusername/canary-bridge/internal/ffmpeg"
	"github.com/yourusername/canary-bridge/internal/mqtt"
	"github.com/yourusername/canary-bridge/pkg/logger"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/config.yaml"
	version           = "0.1.0"
)

func main() {
	// 커맨드라인 플래그 파싱
	configPath := flag.String("config", defaultConfigPath, "설정 파일 경로")
	showVersion := flag.Bool("version", false, "버전 정보 출력")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Canary Bridge v%s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// 설정 로드
	config, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 로거 초기화
	if err := logger.InitLogger(logger.LogConfig{
		Level:      config.Logging.Level,
		Output:     config.Logging.Output,
		FilePath:   config.Logging.FilePath,
		MaxSize:    config.Logging.MaxSize,
		MaxBackups: config.Logging.MaxBackups,
		MaxAge:     config.Logging.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Starting Canary Bridge",
		zap.String("version", version),
		zap.String("go_version", runtime.Version()),
		zap.Int("http_port", config.Server.HTTPPort),
		zap.Int("poll_interval_sec", config.Canary.PollIntervalSec),
	)

	// 벤더 클라이언트와 코디네이터
	canaryClient := canary.NewClient(
		config.Canary.APIURL,
		config.Canary.Username,
		config.Canary.Password,
	)

	coord := coordinator.New(coordinator.Config{
		API:            canaryClient,
		Logger:         logger.Log,
		PollInterval:   config.Canary.PollInterval(),
		RefreshTimeout: config.Canary.RefreshTimeoutDuration(),
	})

	if err := coord.Start(); err != nil {
		logger.Fatal("Failed to start coordinator", zap.Error(err))
	}
	defer coord.Stop()

	// 트랜스코더와 브리지
	transcoder := ffmpeg.NewManager(config.FFmpeg.Binary, logger.Log)
	defer transcoder.StopAll()

	b := bridge.New(bridge.Config{
		Coordinator: coord,
		Transcoder:  transcoder,
		Logger:      logger.Log,
		ExtraArgs:   config.FFmpeg.ExtraArgs,
	})

	if err := b.Start(); err != nil {
		logger.Fatal("Failed to start bridge", zap.Error(err))
	}
	defer b.Stop()

	// WebSocket 상태 피드
	feedServer := feed.NewServer(logger.Log)
	coord.Subscribe(func(_ *coordinator.Snapshot) {
		feedServer.Broadcast(b.States())
	})

	// MQTT 퍼블리셔 (broker_url이 비어있으면 비활성화)
	if config.MQTT.BrokerURL != "" {
		publisher := mqtt.NewPublisher(mqtt.Config{
			BrokerURL:   config.MQTT.BrokerURL,
			ClientID:    config.MQTT.ClientID,
			TopicPrefix: config.MQTT.TopicPrefix,
			Logger:      logger.Log,
		})

		if err := publisher.Connect(); err != nil {
			logger.Error("MQTT publisher disabled", zap.Error(err))
		} else {
			defer publisher.Disconnect()
			coord.Subscribe(func(_ *coordinator.Snapshot) {
				publisher.PublishStates(b.States())
			})
			publisher.PublishStates(b.States())
		}
	}

	// HTTP API 서버
	apiServer := api.NewServer(api.ServerConfig{
		Port:             config.Server.HTTPPort,
		Production:       config.Server.Production,
		Logger:           logger.Log,
		Provider:         b,
		WebSocketHandler: feedServer.HandleWebSocket,
	})

	if err := apiServer.Start(); err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}
	defer apiServer.Stop()

	logger.Info("All components initialized successfully")

	// 종료 시그널 대기
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received shutdown signal",
		zap.String("signal", sig.String()),
	)
}
