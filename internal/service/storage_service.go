package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"kbot_backend/internal/config"
	"kbot_backend/internal/util"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactStorage 图谱制品的存储后端
// 外部构建流程把制品写到这里，导入服务按对象名取回
type ArtifactStorage interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	Store(ctx context.Context, name string, data []byte, contentType string) error
	Delete(ctx context.Context, name string) error
}

// LocalArtifactStorage 本地目录实现
type LocalArtifactStorage struct {
	Config *config.StorageConfig
}

func (p *LocalArtifactStorage) Fetch(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.Config.LocalPath, name))
}

func (p *LocalArtifactStorage) Store(ctx context.Context, name string, data []byte, contentType string) error {
	dst := filepath.Join(p.Config.LocalPath, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func (p *LocalArtifactStorage) Delete(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, name))
}

// MinioArtifactStorage MinIO实现
type MinioArtifactStorage struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioArtifactStorage(cfg *config.StorageConfig) (*MinioArtifactStorage, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioArtifactStorage{Config: cfg, Client: client}, nil
}

func (p *MinioArtifactStorage) Fetch(ctx context.Context, name string) ([]byte, error) {
	obj, err := p.Client.GetObject(ctx, p.Config.MinioBucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (p *MinioArtifactStorage) Store(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (p *MinioArtifactStorage) Delete(ctx context.Context, name string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, name, minio.RemoveObjectOptions{})
}

// OSSArtifactStorage 阿里云OSS实现
type OSSArtifactStorage struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSArtifactStorage(cfg *config.StorageConfig) (*OSSArtifactStorage, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSArtifactStorage{Config: cfg, Client: client}, nil
}

func (p *OSSArtifactStorage) Fetch(ctx context.Context, name string) ([]byte, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return nil, err
	}
	body, err := bucket.GetObject(name)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (p *OSSArtifactStorage) Store(ctx context.Context, name string, data []byte, contentType string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.PutObject(name, bytes.NewReader(data))
}

func (p *OSSArtifactStorage) Delete(ctx context.Context, name string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(name)
}

// StorageService 按配置选择存储后端，后端初始化失败时回退本地目录
type StorageService struct {
	Provider ArtifactStorage
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider ArtifactStorage
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioArtifactStorage(&cfg.Storage)
		if err == nil {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSArtifactStorage(&cfg.Storage)
		if err == nil {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalArtifactStorage{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider}
}

func (s *StorageService) Fetch(ctx context.Context, name string) ([]byte, error) {
	return s.Provider.Fetch(ctx, name)
}

func (s *StorageService) Store(ctx context.Context, name string, data []byte, contentType string) error {
	return s.Provider.Store(ctx, name, data, contentType)
}

func (s *StorageService) Delete(ctx context.Context, name string) error {
	return s.Provider.Delete(ctx, name)
}
