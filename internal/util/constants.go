package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 图谱导出文件
const (
	MimeJSON       = "application/json"
	GraphExportDir = "graph-exports"
)
