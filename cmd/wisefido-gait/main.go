package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"wisefido-gait/internal/config"
	"wisefido-gait/internal/service"
	"wisefido-gait/internal/session"

	"go.uber.org/zap"
	"wisefido-gait/common/logger"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-gait")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 创建服务
	gaitService, err := service.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create gait service",
			zap.Error(err),
		)
	}
	defer gaitService.Stop()

	// 5. 等待信号：取消会话，分析协程退出后 RunSession 返回
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("Received signal, cancelling session",
				zap.String("signal", sig.String()),
			)
			gaitService.Cancel()
		case <-ctx.Done():
		}
	}()

	// 6. 录制一个会话
	req := gaitService.DefaultRequest()
	log.Info("Starting gait session",
		zap.String("exercise", req.Exercise.String()),
		zap.Int("sensitivity", req.Sensitivity),
		zap.Duration("duration", req.Duration),
		zap.String("sensor_mode", cfg.Gait.Sensor.Mode),
	)

	result, err := gaitService.RunSession(ctx, req)
	if err != nil {
		exitCode := 1
		switch {
		case errors.Is(err, session.ErrSensorUnavailable):
			exitCode = 2
		case errors.Is(err, session.ErrNoAudioSamples):
			exitCode = 3
		case errors.Is(err, session.ErrSensorDropout):
			exitCode = 4
		}
		log.Error("Gait session failed", zap.Error(err))
		gaitService.Stop()
		log.Sync()
		os.Exit(exitCode)
	}
	if result == nil {
		log.Info("Gait session cancelled")
		return
	}

	log.Info("Gait service finished",
		zap.String("session_id", result.SessionID),
		zap.Int("movements", result.TotalMovements()),
	)
}
