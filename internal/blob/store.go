// Package blob はアップロード画像の保存と外部URLからの取り込みを提供する。
// 保存した画像は不透明な参照（/media/<uuid><ext>）で識別する。
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/hitoshi/placeshare/internal/model"
)

// URLPrefix は保存した画像を配信するパスの接頭辞。
const URLPrefix = "/media/"

// allowedImageTypes は受け付ける画像のMIMEタイプ。
var allowedImageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Store は画像を保存し参照を返すインターフェース。
type Store interface {
	// Save は画像を保存して参照を返す。
	// 画像でない場合はmodel.ErrInvalidMedia、上限超過はmodel.ErrMediaTooLargeを返す。
	Save(ctx context.Context, r io.Reader) (string, error)
}

// FSStore はローカルファイルシステムに画像を保存するStore。
type FSStore struct {
	dir     string
	maxSize int64
}

// NewFSStore はFSStoreを生成し、保存先ディレクトリを作成する。
func NewFSStore(dir string, maxSize int64) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &FSStore{dir: dir, maxSize: maxSize}, nil
}

// Dir は保存先ディレクトリを返す。
func (s *FSStore) Dir() string {
	return s.dir
}

// Save は内容から画像形式を判定し、一時ファイル経由でアトミックに書き込む。
func (s *FSStore) Save(ctx context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", model.ErrMediaTooLarge
	}
	if len(data) == 0 {
		return "", model.ErrInvalidMedia
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return "", model.ErrInvalidMedia
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New().String() + mtype.Extension()

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close media: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("failed to store media: %w", err)
	}

	return URLPrefix + name, nil
}

// Path は参照に対応するファイルパスを返す。参照が不正な場合はfalseを返す。
func (s *FSStore) Path(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return filepath.Join(s.dir, name), true
}

// compile-time interface check
var _ Store = (*FSStore)(nil)
