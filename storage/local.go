package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store 音频文件存储接口。ref 是 Create 返回的不透明引用。
type Store interface {
	Create(ext string) (ref string, w io.WriteCloser, err error)
	Open(ref string) (io.ReadCloser, error)
	Exists(ref string) bool
	Remove(ref string) error
	Path(ref string) (string, error)
}

// LocalStore 基于本地目录的实现。文件名为 uuid + 扩展名。
type LocalStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalStore 创建本地存储,目录不存在时自动创建。
func NewLocalStore(dir string, logger *zap.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{
		dir:    dir,
		logger: logger.With(zap.String("component", "storage")),
	}, nil
}

// Create 创建新文件并返回引用与写入句柄。
func (s *LocalStore) Create(ext string) (string, io.WriteCloser, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	ref := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.dir, ref))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create audio file: %w", err)
	}

	return ref, f, nil
}

// Open 打开引用对应的文件。
func (s *LocalStore) Open(ref string) (io.ReadCloser, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Exists 检查引用对应的文件是否仍然存在。
func (s *LocalStore) Exists(ref string) bool {
	path, err := s.Path(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Remove 删除引用对应的文件,文件不存在时静默成功。
func (s *LocalStore) Remove(ref string) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove audio file",
			zap.String("ref", ref), zap.Error(err))
		return err
	}
	return nil
}

// Path 返回引用对应的绝对路径,拒绝逃出存储目录的引用。
func (s *LocalStore) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("invalid file reference: %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}
