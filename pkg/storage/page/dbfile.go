package page

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"clustore/pkg/dberror"
	"clustore/pkg/primitives"

	"github.com/dgraph-io/ristretto/v2"
)

// FileOptions configures a BaseFile.
type FileOptions struct {
	// PageSize is the size of every numbered page.
	PageSize int

	// HeaderSize is the size of page 0, which sits at offset 0 ahead of the
	// numbered pages. Page n >= 1 starts at HeaderSize + (n-1)*PageSize.
	HeaderSize int

	// CacheBytes bounds the clean block cache kept below the buffer pool.
	// Zero disables it.
	CacheBytes int64

	// SyncOnWrite fsyncs after every page write.
	SyncOnWrite bool
}

// BaseFile provides page-granular I/O over one table file.
//
// Page 0 is a small fixed header region and every other page has the same
// size. Reads and writes are serialized with a read/write mutex; reads may be
// served from an optional block cache that holds copies of on-disk images.
// The file is locked with an advisory lock for as long as it is open.
type BaseFile struct {
	file     *os.File
	fileID   primitives.FileID
	mutex    sync.RWMutex
	filePath primitives.Filepath
	opts     FileOptions
	cache    *ristretto.Cache[uint64, []byte]
}

// NewBaseFile opens (creating if needed) the file at filePath.
func NewBaseFile(filePath primitives.Filepath, opts FileOptions) (*BaseFile, error) {
	if filePath.IsEmpty() {
		return nil, dberror.New(dberror.ErrCategoryConfig, dberror.CodeIOFailure, "filePath cannot be empty")
	}
	if opts.PageSize <= 0 || opts.HeaderSize < 0 {
		return nil, dberror.Newf(dberror.ErrCategoryConfig, dberror.CodePageSizeTooSmall,
			"invalid page geometry: page=%d header=%d", opts.PageSize, opts.HeaderSize)
	}

	file, err := openFile(filePath)
	if err != nil {
		return nil, err
	}

	if err := lockFile(file); err != nil {
		file.Close()
		return nil, dberror.New(dberror.ErrCategorySystem, dberror.CodeFileLocked, "table file is locked by another owner").
			WithDetail("%s", filePath).
			WithCause(err)
	}

	bf := &BaseFile{
		file:     file,
		fileID:   filePath.Hash(),
		filePath: filePath,
		opts:     opts,
	}

	if opts.CacheBytes > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
			NumCounters: max(10*opts.CacheBytes/int64(opts.PageSize), 100),
			MaxCost:     opts.CacheBytes,
			BufferItems: 64,
			Metrics:     true,
		})
		if err != nil {
			_ = unlockFile(file)
			file.Close()
			return nil, fmt.Errorf("failed to create block cache: %w", err)
		}
		bf.cache = cache
	}

	return bf, nil
}

// GetID returns the unique identifier for this file.
func (bf *BaseFile) GetID() primitives.FileID {
	return bf.fileID
}

// FilePath returns the path used to open this file.
func (bf *BaseFile) FilePath() primitives.Filepath {
	return bf.filePath
}

// PageSize returns the size of numbered pages.
func (bf *BaseFile) PageSize() int {
	return bf.opts.PageSize
}

// offset returns the byte offset and length of page pageNo.
func (bf *BaseFile) offset(pageNo primitives.PageNumber) (int64, int) {
	if pageNo == 0 {
		return 0, bf.opts.HeaderSize
	}
	return int64(bf.opts.HeaderSize) + int64(pageNo-1)*int64(bf.opts.PageSize), bf.opts.PageSize
}

// Size returns the current file length in bytes.
func (bf *BaseFile) Size() (int64, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()
	return bf.sizeLocked()
}

func (bf *BaseFile) sizeLocked() (int64, error) {
	if bf.file == nil {
		return 0, errFileClosed()
	}

	fileInfo, err := bf.file.Stat()
	if err != nil {
		return 0, dberror.Wrap(err, dberror.CodeIOFailure, "Stat", "BaseFile")
	}
	return fileInfo.Size(), nil
}

// NumPages returns the number of numbered pages (page 0 excluded). A
// trailing partial page counts as a page.
func (bf *BaseFile) NumPages() (primitives.PageNumber, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()
	return bf.numPagesLocked()
}

func (bf *BaseFile) numPagesLocked() (primitives.PageNumber, error) {
	size, err := bf.sizeLocked()
	if err != nil {
		return 0, err
	}

	body := size - int64(bf.opts.HeaderSize)
	if body <= 0 {
		return 0, nil
	}

	numPages := body / int64(bf.opts.PageSize)
	if body%int64(bf.opts.PageSize) != 0 {
		numPages++
	}
	return primitives.PageNumber(numPages), nil
}

// ReadPageData reads the raw bytes of a page. A page that lies wholly or
// partly beyond the end of the file is a short read.
func (bf *BaseFile) ReadPageData(pageNo primitives.PageNumber) ([]byte, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	if bf.file == nil {
		return nil, errFileClosed()
	}

	if bf.cache != nil {
		if cached, ok := bf.cache.Get(uint64(pageNo)); ok {
			return append([]byte(nil), cached...), nil
		}
	}

	off, length := bf.offset(pageNo)
	pageData := make([]byte, length)

	n, err := bf.file.ReadAt(pageData, off)
	if err != nil {
		if errors.Is(err, io.EOF) || n < length {
			return nil, dberror.New(dberror.ErrCategorySystem, dberror.CodeShortRead, "page extends past end of file").
				WithDetail("page=%d offset=%d read=%d want=%d", pageNo, off, n, length).
				WithOperation("ReadPageData", "BaseFile")
		}
		return nil, dberror.Wrap(err, dberror.CodeIOFailure, "ReadPageData", "BaseFile")
	}

	if bf.cache != nil {
		bf.cache.Set(uint64(pageNo), append([]byte(nil), pageData...), int64(length))
	}
	return pageData, nil
}

// WritePageData overwrites a page at its computed offset.
func (bf *BaseFile) WritePageData(pageNo primitives.PageNumber, pageData []byte) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return errFileClosed()
	}

	off, length := bf.offset(pageNo)
	if len(pageData) != length {
		return dberror.Newf(dberror.ErrCategoryData, dberror.CodeCorruptPage,
			"invalid page data size: expected %d, got %d", length, len(pageData))
	}

	if bf.cache != nil {
		bf.cache.Del(uint64(pageNo))
	}

	if _, err := bf.file.WriteAt(pageData, off); err != nil {
		return dberror.Wrap(fmt.Errorf("failed to write page %d: %w", pageNo, err), dberror.CodeIOFailure, "WritePageData", "BaseFile")
	}

	if bf.opts.SyncOnWrite {
		if err := bf.file.Sync(); err != nil {
			return dberror.Wrap(fmt.Errorf("failed to sync file: %w", err), dberror.CodeIOFailure, "WritePageData", "BaseFile")
		}
	}

	if bf.cache != nil {
		bf.cache.Wait()
	}
	return nil
}

// AllocateNewPage extends the file by one zero-filled page and returns its
// number. The write happens under the file lock, so concurrent callers
// always receive distinct page numbers.
func (bf *BaseFile) AllocateNewPage() (primitives.PageNumber, error) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return 0, errFileClosed()
	}

	numPages, err := bf.numPagesLocked()
	if err != nil {
		return 0, err
	}

	allocated := numPages + 1
	off, length := bf.offset(allocated)

	if _, err := bf.file.WriteAt(make([]byte, length), off); err != nil {
		return 0, dberror.Wrap(fmt.Errorf("failed to reserve page space: %w", err), dberror.CodeIOFailure, "AllocateNewPage", "BaseFile")
	}

	if bf.opts.SyncOnWrite {
		if err := bf.file.Sync(); err != nil {
			return 0, dberror.Wrap(err, dberror.CodeIOFailure, "AllocateNewPage", "BaseFile")
		}
	}

	return allocated, nil
}

// Sync flushes the file to stable storage.
func (bf *BaseFile) Sync() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return errFileClosed()
	}
	return bf.file.Sync()
}

// CacheMetrics returns block cache hits and misses, or zeros when the cache
// is disabled.
func (bf *BaseFile) CacheMetrics() (hits, misses uint64) {
	if bf.cache == nil || bf.cache.Metrics == nil {
		return 0, 0
	}
	return bf.cache.Metrics.Hits(), bf.cache.Metrics.Misses()
}

// Close releases the advisory lock and closes the file. Calling Close twice
// is a no-op.
func (bf *BaseFile) Close() error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	if bf.file == nil {
		return nil
	}

	if bf.cache != nil {
		bf.cache.Close()
		bf.cache = nil
	}

	_ = unlockFile(bf.file)
	err := bf.file.Close()
	bf.file = nil
	return err
}

func openFile(filename primitives.Filepath) (*os.File, error) {
	file, err := os.OpenFile(string(filename), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberror.Wrap(fmt.Errorf("failed to open file %s: %w", filename, err), dberror.CodeIOFailure, "Open", "BaseFile")
	}
	return file, nil
}

func errFileClosed() error {
	return dberror.New(dberror.ErrCategorySystem, dberror.CodeFileClosed, "file is closed")
}
