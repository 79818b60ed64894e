package util

const TimeFormat = "2006-01-02 15:04:05"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)
