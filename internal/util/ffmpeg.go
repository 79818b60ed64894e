package util

import (
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoInfo 存储视频信息
type VideoInfo struct {
	Duration float64 `json:"duration"` // 视频时长（秒）
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// GetVideoInfo 使用ffmpeg-go库获取视频信息，source 可以是本地路径或 http(s) 地址
func GetVideoInfo(source string) (*VideoInfo, error) {
	jsonOutput, err := ffmpeg.Probe(source)
	if err != nil {
		return nil, fmt.Errorf("获取视频信息失败: %w", err)
	}

	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("解析视频信息失败: %w", err)
	}

	info := &VideoInfo{}
	for _, stream := range result.Streams {
		if stream.CodecType == "video" {
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}

	duration, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("视频时长无效: %q", result.Format.Duration)
	}
	info.Duration = duration

	return info, nil
}

// ProbeDuration 只取时长
func ProbeDuration(source string) (float64, error) {
	info, err := GetVideoInfo(source)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
