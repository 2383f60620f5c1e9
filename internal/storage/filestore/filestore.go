// Пакет filestore — операции с файлами документов на диске.
// Базовая директория содержит три поддиректории: active (действующие
// документы), archive (архив) и temp (резерв для внешних процессов).
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Имена поддиректорий хранилища.
const (
	ActiveDir  = "active"
	ArchiveDir = "archive"
	TempDir    = "temp"
)

// tmpSuffix — суффикс временного файла при записи.
const tmpSuffix = ".tmp"

// Ошибки файлового хранилища.
var (
	// ErrFileNotFound — файл отсутствует на диске.
	ErrFileNotFound = errors.New("файл не найден")
	// ErrFileExists — целевой файл уже существует.
	ErrFileExists = errors.New("файл уже существует")
)

// FileStore — управление файлами документов на диске.
type FileStore struct {
	baseDir    string
	activeDir  string
	archiveDir string
	tempDir    string
}

// SaveResult — результат записи файла.
type SaveResult struct {
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер файла на диске в байтах
	Size int64
	// Checksum — SHA-256 байтов, прочитанных с диска после записи
	Checksum string
}

// New создаёт FileStore и поддиректории active, archive, temp.
func New(baseDir string) (*FileStore, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("некорректная директория хранилища %s: %w", baseDir, err)
	}

	fs := &FileStore{
		baseDir:    abs,
		activeDir:  filepath.Join(abs, ActiveDir),
		archiveDir: filepath.Join(abs, ArchiveDir),
		tempDir:    filepath.Join(abs, TempDir),
	}
	for _, dir := range []string{fs.activeDir, fs.archiveDir, fs.tempDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}
	return fs, nil
}

// ActivePath возвращает путь файла в директории действующих документов.
func (fs *FileStore) ActivePath(fileName string) string {
	return filepath.Join(fs.activeDir, filepath.Base(fileName))
}

// ArchivePath возвращает путь файла в архиве.
func (fs *FileStore) ArchivePath(fileName string) string {
	return filepath.Join(fs.archiveDir, filepath.Base(fileName))
}

// ActiveDir возвращает директорию действующих документов.
func (fs *FileStore) ActiveDir() string { return fs.activeDir }

// ArchiveDir возвращает директорию архива.
func (fs *FileStore) ArchiveDir() string { return fs.archiveDir }

// BaseDir возвращает базовую директорию хранилища.
func (fs *FileStore) BaseDir() string { return fs.baseDir }

// WriteActive записывает data в директорию действующих документов.
//
// Паттерн: temp файл → запись → fsync → atomic rename. После rename
// файл перечитывается с диска, и checksum считается по прочитанным байтам,
// а не по буферу в памяти.
func (fs *FileStore) WriteActive(fileName string, data []byte) (*SaveResult, error) {
	fullPath := fs.ActivePath(fileName)
	tmpPath := fullPath + tmpSuffix

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	checksum, size, err := fs.Digest(fullPath)
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("ошибка проверки записанного файла: %w", err)
	}

	return &SaveResult{FullPath: fullPath, Size: size, Checksum: checksum}, nil
}

// Read читает файл целиком. Для отсутствующего файла возвращает ErrFileNotFound.
func (fs *FileStore) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}
	return data, nil
}

// Exists проверяет существование файла.
func (fs *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Ready проверяет, что директории active и archive доступны.
// Вызывается из /health/ready.
func (fs *FileStore) Ready(context.Context) error {
	for _, dir := range []string{fs.activeDir, fs.archiveDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("директория хранилища %s недоступна: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s не является директорией", dir)
		}
	}
	return nil
}

// Move переносит файл через rename, без копирования.
// Не перезаписывает существующий файл: возвращает ErrFileExists.
func (fs *FileStore) Move(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, src)
		}
		return fmt.Errorf("ошибка доступа к файлу %s: %w", src, err)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("ошибка переноса %s → %s: %w", src, dst, err)
	}
	return nil
}

// Delete удаляет файл. Возвращает nil, если файла уже нет.
func (fs *FileStore) Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", path, err)
	}
	return nil
}

// Digest вычисляет SHA-256 и размер существующего файла.
func (fs *FileStore) Digest(path string) (checksum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", 0, fmt.Errorf("ошибка открытия файла %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	size, err = io.Copy(hasher, f)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка вычисления checksum %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// ListActive возвращает пути файлов документов в директории active.
// Временные файлы незавершённой записи пропускаются.
func (fs *FileStore) ListActive() ([]string, error) {
	entries, err := os.ReadDir(fs.activeDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", fs.activeDir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(fs.activeDir, e.Name()))
	}
	return paths, nil
}

// Checksum вычисляет SHA-256 от среза байтов в hex.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
