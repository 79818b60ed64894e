package service

import (
	"context"
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/util"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultPresignExpiry = time.Hour

// StorageProvider 把课时存储的视频地址换成播放器可用的地址
type StorageProvider interface {
	// PlaybackURL 客户端播放地址，外链原样返回
	PlaybackURL(ctx context.Context, videoURL string) (string, error)
	// ProbeSource ffprobe 可读取的本地路径或 URL
	ProbeSource(ctx context.Context, videoURL string) (string, error)
}

func NewStorageProvider(cfg *config.StorageConfig) (StorageProvider, error) {
	if cfg.Type == util.StorageMinio {
		return NewMinioStorageProvider(cfg)
	}
	return &LocalStorageProvider{Config: cfg}, nil
}

// LocalStorageProvider 本地存储，视频以 /uploads/ 前缀对外提供
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

const localPrefix = "/uploads/"

func (p *LocalStorageProvider) PlaybackURL(ctx context.Context, videoURL string) (string, error) {
	return strings.TrimSpace(videoURL), nil
}

func (p *LocalStorageProvider) ProbeSource(ctx context.Context, videoURL string) (string, error) {
	videoURL = strings.TrimSpace(videoURL)
	if strings.HasPrefix(videoURL, localPrefix) {
		return filepath.Join(p.Config.LocalPath, filepath.FromSlash(strings.TrimPrefix(videoURL, localPrefix))), nil
	}
	return videoURL, nil
}

// MinioStorageProvider MinIO 中的视频通过预签名地址播放
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

// objectKey 识别 /{bucket}/{key} 和 minio://{bucket}/{key} 两种写法
func (p *MinioStorageProvider) objectKey(videoURL string) (string, bool) {
	videoURL = strings.TrimSpace(videoURL)
	if rest, ok := strings.CutPrefix(videoURL, "minio://"+p.Config.MinioBucket+"/"); ok && rest != "" {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(videoURL, "/"+p.Config.MinioBucket+"/"); ok && rest != "" {
		return rest, true
	}
	return "", false
}

func (p *MinioStorageProvider) PlaybackURL(ctx context.Context, videoURL string) (string, error) {
	key, ok := p.objectKey(videoURL)
	if !ok {
		return strings.TrimSpace(videoURL), nil
	}
	expiry := p.Config.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	u, err := p.Client.PresignedGetObject(ctx, p.Config.MinioBucket, key, expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (p *MinioStorageProvider) ProbeSource(ctx context.Context, videoURL string) (string, error) {
	return p.PlaybackURL(ctx, videoURL)
}
