package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	"wisefido-gait/common/config"
	"wisefido-gait/internal/models"
)

// 传感器模式
const (
	SensorModeMQTT = "mqtt"
	SensorModeSim  = "sim"
)

// Config 步态训练服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Gait struct {
		// 会话参数（单次录制）
		Session struct {
			Duration       time.Duration // GAIT_DURATION（秒），默认 30
			Exercise       models.ExerciseType
			Sensitivity    int
			AutoDetectLegs bool
			SteppingLeg    models.Leg // 关闭自动识别时的前进腿
			CalculateBPM   bool
			SoundEnabled   bool
			AudioDir       string
			CueTopic       string // 音箱网关主题
		}

		Analyzer struct {
			Tick           time.Duration
			WindowSize     int
			PeakBlock      int
			BufferCapacity int
		}

		Sensor struct {
			Mode           string // mqtt | sim
			DeviceID       string
			TopicPrefix    string
			PollInterval   time.Duration
			ConnectTimeout time.Duration
			DropoutTimeout time.Duration
			SampleRate     float64
			SimPeriod      time.Duration
		}

		// Params.Source 为空使用内置参数表，http(s) 地址远程下载，否则为本地文件
		Params struct {
			Source string
		}

		Cache struct {
			CueStream       string
			CueStreamMaxLen int64
			CueQueueSize    int
			ResultPrefix    string
			ResultTTL       time.Duration
		}

		// Report.Dir 为空时不导出
		Report struct {
			Dir string
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 数据库默认关闭，本地演示不需要 PostgreSQL
	cfg.Database.Enabled = false
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 4
	cfg.Database.MaxIdle = 2
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Enabled = true
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-gait")
	cfg.MQTT.QoS = 0
	cfg.MQTT.LoadFromEnv("MQTT")

	var err error
	s := &cfg.Gait.Session
	if s.Duration, err = getEnvDuration("GAIT_DURATION", time.Second, 30); err != nil {
		return nil, err
	}
	if s.Exercise, err = models.ParseExercise(getEnv("GAIT_EXERCISE", "walk")); err != nil {
		return nil, fmt.Errorf("invalid GAIT_EXERCISE: %w", err)
	}
	if s.Sensitivity, err = getEnvInt("GAIT_SENSITIVITY", 3); err != nil {
		return nil, err
	}
	if s.AutoDetectLegs, err = getEnvBool("GAIT_AUTO_DETECT_LEGS", true); err != nil {
		return nil, err
	}
	if s.SteppingLeg, err = parseLeg(getEnv("GAIT_STEPPING_LEG", "left")); err != nil {
		return nil, err
	}
	if s.CalculateBPM, err = getEnvBool("GAIT_CALCULATE_BPM", true); err != nil {
		return nil, err
	}
	if s.SoundEnabled, err = getEnvBool("GAIT_SOUND_ENABLED", true); err != nil {
		return nil, err
	}
	s.AudioDir = getEnv("GAIT_AUDIO_DIR", "./samples")
	s.CueTopic = getEnv("GAIT_CUE_TOPIC", "gait/speaker/cue")

	a := &cfg.Gait.Analyzer
	if a.Tick, err = getEnvDuration("GAIT_TICK_MS", time.Millisecond, 3); err != nil {
		return nil, err
	}
	if a.WindowSize, err = getEnvInt("GAIT_WINDOW_SIZE", 15); err != nil {
		return nil, err
	}
	if a.PeakBlock, err = getEnvInt("GAIT_PEAK_BLOCK", 8); err != nil {
		return nil, err
	}
	if a.BufferCapacity, err = getEnvInt("GAIT_BUFFER_CAPACITY", 1000); err != nil {
		return nil, err
	}

	sn := &cfg.Gait.Sensor
	sn.Mode = getEnv("GAIT_SENSOR_MODE", SensorModeMQTT)
	if sn.Mode != SensorModeMQTT && sn.Mode != SensorModeSim {
		return nil, fmt.Errorf("invalid GAIT_SENSOR_MODE %q: expected %s or %s", sn.Mode, SensorModeMQTT, SensorModeSim)
	}
	sn.DeviceID = getEnv("GAIT_DEVICE_ID", "gait-001")
	sn.TopicPrefix = getEnv("GAIT_TOPIC_PREFIX", "gait")
	if sn.PollInterval, err = getEnvDuration("GAIT_SENSOR_POLL_MS", time.Millisecond, 2); err != nil {
		return nil, err
	}
	if sn.ConnectTimeout, err = getEnvDuration("GAIT_CONNECT_TIMEOUT", time.Second, 10); err != nil {
		return nil, err
	}
	if sn.DropoutTimeout, err = getEnvDuration("GAIT_DROPOUT_TIMEOUT", time.Second, 6); err != nil {
		return nil, err
	}
	if sn.SampleRate, err = getEnvFloat("GAIT_SAMPLE_RATE", 120); err != nil {
		return nil, err
	}
	if sn.SimPeriod, err = getEnvDuration("GAIT_SIM_PERIOD_MS", time.Millisecond, 1100); err != nil {
		return nil, err
	}

	cfg.Gait.Params.Source = getEnv("GAIT_PARAMS_SOURCE", "")

	c := &cfg.Gait.Cache
	c.CueStream = getEnv("GAIT_CUE_STREAM", "gait:cue:stream")
	c.CueStreamMaxLen = 10000
	if c.CueQueueSize, err = getEnvInt("GAIT_CUE_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	c.ResultPrefix = getEnv("GAIT_RESULT_PREFIX", "gait:session:")
	if c.ResultTTL, err = getEnvDuration("GAIT_RESULT_TTL", time.Second, 86400); err != nil {
		return nil, err
	}

	cfg.Gait.Report.Dir = getEnv("GAIT_REPORT_DIR", "./reports")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getEnvDuration 读取以 unit 为单位的数值（允许小数）
func getEnvDuration(key string, unit time.Duration, defaultValue float64) (time.Duration, error) {
	f, err := getEnvFloat(key, defaultValue)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(f * float64(unit)), nil
}

func parseLeg(s string) (models.Leg, error) {
	switch s {
	case "left", "0":
		return models.LegLeft, nil
	case "right", "1":
		return models.LegRight, nil
	}
	return 0, fmt.Errorf("invalid GAIT_STEPPING_LEG %q: expected left or right", s)
}
