package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 网关注入的用户标识请求头
const (
	HeaderUserID = "X-User-ID"
)

// 教学图谱制品相关常量
const (
	MimeYAML = "application/x-yaml"
	MimeJSON = "application/json"
)

var (
	AllowedArtifactExtensions = []string{".yaml", ".yml", ".json"}
)
