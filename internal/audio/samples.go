// Package audio 音频提示：样本文件加载与远端播放
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrNoSamples 目录中没有可用的音频样本
var ErrNoSamples = errors.New("no audio samples found")

// Sample 一个音频样本（WAV 文件）
type Sample struct {
	Index         int
	Name          string
	Path          string
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int64
}

// Duration 样本时长（秒）
func (s Sample) Duration() float64 {
	frame := s.Channels * s.BitsPerSample / 8
	if frame <= 0 || s.SampleRate <= 0 {
		return 0
	}
	return float64(s.DataSize) / float64(frame*s.SampleRate)
}

// LoadSamples 按文件名顺序加载目录中的 .wav 样本
// 头部无效的文件跳过并记录警告；一个可用样本都没有时返回 ErrNoSamples。
func LoadSamples(dir string, logger *zap.Logger) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: directory %s does not exist", ErrNoSamples, dir)
		}
		return nil, fmt.Errorf("failed to read audio directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	samples := make([]Sample, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		s, err := readHeader(path)
		if err != nil {
			logger.Warn("Skipping invalid audio sample", zap.String("path", path), zap.Error(err))
			continue
		}
		s.Index = len(samples)
		s.Name = strings.TrimSuffix(name, filepath.Ext(name))
		s.Path = path
		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSamples, dir)
	}

	logger.Info("Audio samples loaded", zap.String("dir", dir), zap.Int("count", len(samples)))
	return samples, nil
}

// readHeader 解析 RIFF/WAVE 头，找到 fmt 与 data 块
func readHeader(path string) (Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sample{}, err
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return Sample{}, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Sample{}, errors.New("not a RIFF/WAVE file")
	}

	var (
		s       Sample
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return Sample{}, fmt.Errorf("missing data chunk: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return Sample{}, fmt.Errorf("fmt chunk too short: %d", size)
			}
			var body [16]byte
			if _, err := io.ReadFull(f, body[:]); err != nil {
				return Sample{}, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			s.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			s.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			s.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			if s.Channels == 0 || s.SampleRate == 0 {
				return Sample{}, errors.New("invalid fmt chunk")
			}
			haveFmt = true
			if _, err := f.Seek(size-16+size%2, io.SeekCurrent); err != nil {
				return Sample{}, err
			}
		case "data":
			if !haveFmt {
				return Sample{}, errors.New("data chunk before fmt chunk")
			}
			s.DataSize = size
			return s, nil
		default:
			if _, err := f.Seek(size+size%2, io.SeekCurrent); err != nil {
				return Sample{}, err
			}
		}
	}
}
