package memory

import (
	"fmt"
	"sync"

	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

const mockPageSize = 16

// mockPage implements page.Page for testing
type mockPage struct {
	id       page.PageID
	dirtyTid *primitives.TransactionID
	data     []byte
	oldData  []byte
	mutex    sync.RWMutex
}

func newMockPage(pid page.PageID, data []byte) *mockPage {
	if data == nil {
		data = make([]byte, mockPageSize)
	}
	return &mockPage{
		id:      pid,
		data:    append([]byte(nil), data...),
		oldData: append([]byte(nil), data...),
	}
}

func (m *mockPage) GetID() page.PageID {
	return m.id
}

func (m *mockPage) IsDirty() *primitives.TransactionID {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.dirtyTid
}

func (m *mockPage) MarkDirty(dirty bool, tid *primitives.TransactionID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if dirty {
		m.dirtyTid = tid
	} else {
		m.dirtyTid = nil
	}
}

func (m *mockPage) GetPageData() []byte {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]byte(nil), m.data...)
}

func (m *mockPage) GetBeforeImage() page.Page {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return newMockPage(m.id, m.oldData)
}

func (m *mockPage) SetBeforeImage() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.oldData = append([]byte(nil), m.data...)
}

func (m *mockPage) set(b byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data[0] = b
}

func (m *mockPage) first() byte {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.data[0]
}

// mockDbFile keeps page images in memory and counts reads and writes.
type mockDbFile struct {
	id     primitives.TableID
	images map[primitives.PageNumber][]byte
	reads  int
	writes int
	closed bool
	mutex  sync.Mutex
}

func newMockDbFile(id primitives.TableID) *mockDbFile {
	return &mockDbFile{
		id:     id,
		images: make(map[primitives.PageNumber][]byte),
	}
}

func (f *mockDbFile) ReadPage(pid page.PageID) (page.Page, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.reads++
	return newMockPage(pid, f.images[pid.PageNo()]), nil
}

func (f *mockDbFile) WritePage(p page.Page) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.closed {
		return fmt.Errorf("file %s closed", f.id)
	}
	f.writes++
	f.images[p.GetID().PageNo()] = p.GetPageData()
	return nil
}

func (f *mockDbFile) GetID() primitives.TableID {
	return f.id
}

func (f *mockDbFile) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.closed = true
	return nil
}

func (f *mockDbFile) onDisk(pageNo primitives.PageNumber) byte {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	img := f.images[pageNo]
	if len(img) == 0 {
		return 0
	}
	return img[0]
}

func (f *mockDbFile) writeCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.writes
}

// recordingLogger implements PageImageLogger.
type recordingLogger struct {
	mutex  sync.Mutex
	logged []page.PageID
}

func (l *recordingLogger) LogPageImage(_ *primitives.TransactionID, pid page.PageID, _, _ []byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.logged = append(l.logged, pid)
	return nil
}
