package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
	"wisefido-gait/internal/audio"
	"wisefido-gait/internal/cache"
	"wisefido-gait/internal/config"
	"wisefido-gait/internal/models"
	"wisefido-gait/internal/params"
	"wisefido-gait/internal/report"
	"wisefido-gait/internal/repository"
	"wisefido-gait/internal/sensor"
	"wisefido-gait/internal/session"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"wisefido-gait/common/database"
	mqttcommon "wisefido-gait/common/mqtt"
	rediscommon "wisefido-gait/common/redis"
)

// persistTimeout 会话结束后持久化、缓存、导出的总时限
const persistTimeout = 10 * time.Second

// SessionStore 会话持久化（repository.SessionRepository 满足该接口）
type SessionStore interface {
	SaveSession(ctx context.Context, summary *models.SessionSummary, samples [2][]float64) error
}

// ResultCache 会话结果缓存（cache.CacheManager 满足该接口）
type ResultCache interface {
	SaveResult(ctx context.Context, summary *models.SessionSummary) error
}

// Components 服务依赖的组件，New 根据配置装配，测试可直接注入
type Components struct {
	Connector sensor.Connector
	Params    session.ParamTable
	Cues      session.CueBackend
	Publisher cache.CuePublisher // 为空时不推送实时事件
	Results   ResultCache        // 为空时不缓存结果
	Store     SessionStore       // 为空时不持久化
}

// GaitService 步态训练服务（整合各层）
type GaitService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	cueClient   *mqttcommon.Client

	controller *session.Controller
	cueStream  *cache.CueStream
	results    ResultCache
	store      SessionStore
}

// New 创建步态训练服务
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*GaitService, error) {
	var comps Components
	var db *sql.DB
	var redisClient *redis.Client
	var cueClient *mqttcommon.Client

	cleanup := func() {
		if cueClient != nil {
			cueClient.Disconnect()
		}
		if redisClient != nil {
			rediscommon.Close(redisClient)
		}
		database.Close(db)
	}

	// 1. 参数表
	table, err := params.Load(ctx, cfg.Gait.Params.Source, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameter table: %w", err)
	}
	comps.Params = table

	// 2. 连接 Redis（实时事件流 + 结果缓存）
	if cfg.Redis.Enabled {
		redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		cacheManager := cache.NewCacheManager(cache.Config{
			CueStream:       cfg.Gait.Cache.CueStream,
			CueStreamMaxLen: cfg.Gait.Cache.CueStreamMaxLen,
			ResultPrefix:    cfg.Gait.Cache.ResultPrefix,
			ResultTTL:       cfg.Gait.Cache.ResultTTL,
		}, cache.NewRedisKVStore(redisClient), redisClient, logger)
		comps.Publisher = cacheManager
		comps.Results = cacheManager
	}

	// 3. 连接数据库（会话记录）
	if cfg.Database.Enabled {
		db, err = database.NewPostgresDB(&cfg.Database)
		if err != nil {
			cleanup()
			return nil, err
		}
		repo := repository.NewSessionRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, err
		}
		comps.Store = repo
	}

	// 4. 传感器
	comps.Connector = newConnector(cfg, logger)

	// 5. 音频提示：样本在本地校验，播放交给音箱网关
	var publisher audio.Publisher
	if cfg.Gait.Session.SoundEnabled {
		mqttCfg := cfg.MQTT
		mqttCfg.ClientID = cfg.MQTT.ClientID + "-cue"
		cueClient, err = mqttcommon.NewClient(&mqttCfg, cfg.Gait.Sensor.ConnectTimeout, logger)
		if err != nil {
			logger.Warn("Speaker gateway unavailable, cues will not be played",
				zap.String("broker", cfg.MQTT.Broker),
				zap.Error(err),
			)
			cueClient = nil
		} else {
			publisher = cueClient
		}
	}
	comps.Cues = &cueBackend{publisher: publisher, topic: cfg.Gait.Session.CueTopic, logger: logger}

	s := NewWithComponents(cfg, comps, logger)
	s.db = db
	s.redisClient = redisClient
	s.cueClient = cueClient
	return s, nil
}

// NewWithComponents 使用已装配的组件创建服务
func NewWithComponents(cfg *config.Config, comps Components, logger *zap.Logger) *GaitService {
	s := &GaitService{
		config:  cfg,
		logger:  logger,
		results: comps.Results,
		store:   comps.Store,
	}

	deps := session.Deps{
		Connector: comps.Connector,
		Params:    comps.Params,
		Cues:      comps.Cues,
	}
	if comps.Publisher != nil {
		s.cueStream = cache.NewCueStream(comps.Publisher, cfg.Gait.Cache.CueQueueSize, logger)
		deps.Sink = s.cueStream
	}

	s.controller = session.NewController(deps, session.Config{
		ConnectTimeout: cfg.Gait.Sensor.ConnectTimeout,
		PollInterval:   cfg.Gait.Sensor.PollInterval,
		DropoutTimeout: cfg.Gait.Sensor.DropoutTimeout,
		SampleRate:     cfg.Gait.Sensor.SampleRate,
		BufferCapacity: cfg.Gait.Analyzer.BufferCapacity,
		AudioDir:       cfg.Gait.Session.AudioDir,
		Tick:           cfg.Gait.Analyzer.Tick,
		WindowSize:     cfg.Gait.Analyzer.WindowSize,
		PeakBlock:      cfg.Gait.Analyzer.PeakBlock,
	}, logger)
	return s
}

// newConnector 按传感器模式创建连接器
func newConnector(cfg *config.Config, logger *zap.Logger) sensor.Connector {
	sn := cfg.Gait.Sensor
	if sn.Mode == config.SensorModeSim {
		return sensor.NewSimConnector(sensor.SimConfig{Rate: sn.SampleRate, Period: sn.SimPeriod})
	}

	dial := func(ctx context.Context) (sensor.MQTTClient, error) {
		mqttCfg := cfg.MQTT
		mqttCfg.ClientID = cfg.MQTT.ClientID + "-sensor"
		client, err := mqttcommon.NewClient(&mqttCfg, sn.ConnectTimeout, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return sensor.NewMQTTConnector(sensor.MQTTConfig{
		DeviceID:    sn.DeviceID,
		TopicPrefix: sn.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
	}, dial, logger)
}

// DefaultRequest 由配置生成会话请求
func (s *GaitService) DefaultRequest() session.Request {
	c := s.config.Gait.Session
	return session.Request{
		Duration:       c.Duration,
		Exercise:       c.Exercise,
		Sensitivity:    c.Sensitivity,
		AutoDetectLegs: c.AutoDetectLegs,
		SteppingLeg:    c.SteppingLeg,
		CalculateBPM:   c.CalculateBPM,
		SoundEnabled:   c.SoundEnabled,
	}
}

// RunSession 录制一个会话，然后持久化、缓存并导出结果
// 后续步骤失败只记录日志，不影响返回的结果。被取消时返回 (nil, nil)。
func (s *GaitService) RunSession(ctx context.Context, req session.Request) (*session.Result, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	logger := s.logger.With(zap.String("session_id", req.SessionID))

	if s.cueStream != nil {
		s.cueStream.SetSession(req.SessionID)
		streamCtx, stopStream := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.cueStream.Run(streamCtx)
		}()
		defer func() {
			stopStream()
			<-done
		}()
	}

	result, err := s.controller.Record(ctx, req, func() {
		logger.Info("Recording started", zap.Duration("duration", req.Duration))
	})
	if err != nil {
		logger.Error("Session failed", zap.Error(err))
		return nil, err
	}
	if result == nil {
		if s.cueStream != nil {
			s.cueStream.Discard()
		}
		logger.Info("Session cancelled")
		return nil, nil
	}

	bpm := -1.0
	if result.BPM != nil {
		bpm = *result.BPM
	}
	logger.Info("Session completed",
		zap.Int("left_movements", result.Legs[0].Movements),
		zap.Int("right_movements", result.Legs[1].Movements),
		zap.Float64("bpm", bpm),
		zap.Int64("polls", result.Metrics.Polls),
		zap.Int64s("ticks", result.Metrics.Ticks[:]),
		zap.Int64s("windows", result.Metrics.Windows[:]),
	)

	s.persist(result, logger)
	return result, nil
}

// persist 会话已结束，使用独立的 ctx，关闭信号不影响落盘
func (s *GaitService) persist(result *session.Result, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	summary := result.Summary()
	samples := result.Samples()

	if s.store != nil {
		if err := s.store.SaveSession(ctx, summary, samples); err != nil {
			logger.Error("Failed to save session", zap.Error(err))
		}
	}
	if s.results != nil {
		if err := s.results.SaveResult(ctx, summary); err != nil {
			logger.Error("Failed to cache session result", zap.Error(err))
		}
	}
	if dir := s.config.Gait.Report.Dir; dir != "" {
		path, err := report.WriteWorkbook(dir, summary, samples)
		if err != nil {
			logger.Error("Failed to export session report", zap.Error(err))
		} else {
			logger.Info("Session report exported", zap.String("path", path))
		}
	}
}

// Cancel 取消进行中的会话
func (s *GaitService) Cancel() {
	s.controller.Cancel()
}

// State 会话控制器状态
func (s *GaitService) State() session.State {
	return s.controller.State()
}

// Stop 释放连接
func (s *GaitService) Stop() error {
	s.logger.Info("Stopping gait service")

	if s.cueClient != nil {
		s.cueClient.Disconnect()
	}
	if s.redisClient != nil {
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	return nil
}

// cueBackend 本地校验音频样本，经 MQTT 让音箱网关播放
type cueBackend struct {
	publisher audio.Publisher // 网关不可用时为空
	topic     string
	logger    *zap.Logger
}

func (b *cueBackend) Load(dir string) ([]audio.Sample, error) {
	return audio.LoadSamples(dir, b.logger)
}

func (b *cueBackend) Player(samples []audio.Sample) audio.Player {
	if b.publisher == nil {
		b.logger.Warn("Sound enabled but no speaker gateway is connected, cues will not be played",
			zap.String("topic", b.topic),
			zap.Int("samples", len(samples)),
		)
		return audio.NopPlayer{}
	}
	return audio.NewMQTTPlayer(b.publisher, b.topic, samples, b.logger)
}
