package source

import (
	"context"
	"errors"
	"os"

	"github.com/minio/minio-go/v7"
)

// Info describes a source location without reading its contents.
type Info struct {
	Location    string      `json:"location"`
	Remote      bool        `json:"remote"`
	Compression Compression `json:"compression,omitempty"`
	Exists      bool        `json:"exists"`
	Size        int64       `json:"size"`
	Error       string      `json:"error,omitempty"`
}

// Inspect reports whether location exists and its stored (compressed) size.
// Errors are reported in Info.Error rather than returned.
func (s *Store) Inspect(ctx context.Context, location string) Info {
	info := Info{
		Location:    location,
		Remote:      IsRemote(location),
		Compression: DetectCompression(location),
	}
	if location == "" {
		info.Error = "no location configured"
		return info
	}
	if !info.Remote {
		st, err := os.Stat(location)
		if err != nil {
			if !os.IsNotExist(err) {
				info.Error = err.Error()
			}
			return info
		}
		info.Exists = !st.IsDir()
		info.Size = st.Size()
		return info
	}
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	if s.s3 == nil {
		info.Error = "object storage is not configured"
		return info
	}
	st, err := s.s3.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if err := mapObjectError(err); !errors.Is(err, os.ErrNotExist) {
			info.Error = err.Error()
		}
		return info
	}
	info.Exists = true
	info.Size = st.Size
	return info
}
