package memory

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"clustore/pkg/dberror"
	"clustore/pkg/logging"
	"clustore/pkg/primitives"
	"clustore/pkg/storage/page"
)

// TableInfo holds a registered table file and its name.
type TableInfo struct {
	Name string
	File page.DbFile
}

func (ti *TableInfo) GetID() primitives.TableID {
	return ti.File.GetID()
}

// TableManager maps table ids and names to open table files. The buffer pool
// resolves the owning file of every page through it.
type TableManager struct {
	nameToTable map[string]*TableInfo
	idToTable   map[primitives.TableID]*TableInfo
	mutex       sync.RWMutex
}

func NewTableManager() *TableManager {
	return &TableManager{
		nameToTable: make(map[string]*TableInfo),
		idToTable:   make(map[primitives.TableID]*TableInfo),
	}
}

// AddTable registers f under name. A table with the same name or id is
// replaced.
func (tm *TableManager) AddTable(name string, f page.DbFile) error {
	if f == nil {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "file cannot be nil")
	}
	if strings.TrimSpace(name) == "" {
		return dberror.New(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "table name cannot be empty")
	}

	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	id := f.GetID()
	if existing, exists := tm.nameToTable[name]; exists {
		delete(tm.idToTable, existing.GetID())
	}
	if existing, exists := tm.idToTable[id]; exists {
		delete(tm.nameToTable, existing.Name)
	}

	info := &TableInfo{Name: name, File: f}
	tm.nameToTable[name] = info
	tm.idToTable[id] = info
	return nil
}

// GetDbFile returns the file registered under tableID.
func (tm *TableManager) GetDbFile(tableID primitives.TableID) (page.DbFile, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	info, exists := tm.idToTable[tableID]
	if !exists {
		return nil, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "table with ID %s not found", tableID)
	}
	return info.File, nil
}

func (tm *TableManager) GetTableID(name string) (primitives.TableID, error) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	info, exists := tm.nameToTable[name]
	if !exists {
		return 0, dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "table '%s' not found", name)
	}
	return info.GetID(), nil
}

// RemoveTable unregisters a table and closes its file.
func (tm *TableManager) RemoveTable(name string) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	info, exists := tm.nameToTable[name]
	if !exists {
		return dberror.Newf(dberror.ErrCategoryUser, dberror.CodeInvalidArgument, "table '%s' not found", name)
	}

	delete(tm.nameToTable, name)
	delete(tm.idToTable, info.GetID())
	return info.File.Close()
}

// Clear closes every registered file and empties the registry. Close errors
// are logged.
func (tm *TableManager) Clear() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	for _, info := range tm.idToTable {
		if err := info.File.Close(); err != nil {
			logging.WithError(err).Warn("failed to close table file", "table", info.Name)
		}
	}

	clear(tm.nameToTable)
	clear(tm.idToTable)
}

func (tm *TableManager) TableExists(name string) bool {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	_, exists := tm.nameToTable[name]
	return exists
}

// GetAllTableNames returns the registered names in sorted order.
func (tm *TableManager) GetAllTableNames() []string {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return slices.Sorted(maps.Keys(tm.nameToTable))
}

// ValidateIntegrity checks that the name and id indexes agree.
func (tm *TableManager) ValidateIntegrity() error {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	if len(tm.nameToTable) != len(tm.idToTable) {
		return dberror.New(dberror.ErrCategoryData, dberror.CodeStructureViolation, "table registry size mismatch")
	}

	for name, info := range tm.nameToTable {
		if other, exists := tm.idToTable[info.GetID()]; !exists || other != info {
			return dberror.Newf(dberror.ErrCategoryData, dberror.CodeStructureViolation,
				"table %s missing from id index", name)
		}
	}
	return nil
}
