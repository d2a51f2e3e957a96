package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"docarchive/internal/domain"
	"docarchive/internal/models"
	"docarchive/internal/repositories"
)

// MemStore is an in-memory archive database for service and handler tests.
// Scope locks are real mutexes held until the enclosing ExecTx returns, and
// a failed ExecTx undoes its writes.
type MemStore struct {
	mu             sync.Mutex
	scopeLocks     map[string]*sync.Mutex
	nextID         int64
	locations      map[int64]models.StorageLocation
	files          map[int64]models.StoredFile
	departments    map[int64]string
	subDepartments map[int64]models.SubDepartment
	users          []models.Scope

	// CreateHook, when set, runs before every location insert and can
	// fail it.
	CreateHook func(loc models.StorageLocation) error
}

func NewMemStore() *MemStore {
	return &MemStore{
		scopeLocks:     make(map[string]*sync.Mutex),
		locations:      make(map[int64]models.StorageLocation),
		files:          make(map[int64]models.StoredFile),
		departments:    make(map[int64]string),
		subDepartments: make(map[int64]models.SubDepartment),
	}
}

type memTxKey struct{}

type memTx struct {
	held  map[string]*sync.Mutex
	order []string
	undo  []func()
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

// ExecTx implements repositories.TxManager.
func (s *MemStore) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	tx := &memTx{held: make(map[string]*sync.Mutex)}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))
	if err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
	}
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.held[tx.order[i]].Unlock()
	}
	return err
}

func (s *MemStore) lockScope(ctx context.Context, scope models.Scope) error {
	tx := txFrom(ctx)
	if tx == nil {
		return fmt.Errorf("scope lock requested outside a transaction")
	}
	key := scope.Key()
	if _, ok := tx.held[key]; ok {
		return nil
	}
	s.mu.Lock()
	m, ok := s.scopeLocks[key]
	if !ok {
		m = &sync.Mutex{}
		s.scopeLocks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	tx.held[key] = m
	tx.order = append(tx.order, key)
	return nil
}

// write must be called with s.mu held.
func (s *MemStore) write(ctx context.Context, undo func()) {
	if tx := txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

// Seeding

func (s *MemStore) AddDepartment(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[id] = name
}

func (s *MemStore) AddSubDepartment(id, departmentID int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subDepartments[id] = models.SubDepartment{ID: id, DepartmentID: departmentID, Name: name}
}

func (s *MemStore) AddUsers(scope models.Scope, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.users = append(s.users, scope)
	}
}

func (s *MemStore) AddFile(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = models.StoredFile{ID: id, FileName: name}
}

// SeedLocation stores a node as given, assigning the next id.
func (s *MemStore) SeedLocation(loc models.StorageLocation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	loc.ID = s.nextID
	loc.CreatedAt = time.Now()
	s.locations[loc.ID] = loc
	return loc.ID
}

// PlaceFile puts an existing file into a location without capacity checks.
func (s *MemStore) PlaceFile(fileID, storageLocationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.files[fileID]
	f.ID = fileID
	id := storageLocationID
	f.StorageLocationID = &id
	s.files[fileID] = f
}

// Inspection

func (s *MemStore) Location(id int64) (models.StorageLocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[id]
	return loc, ok
}

func (s *MemStore) LocationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locations)
}

func (s *MemStore) FileLocation(fileID int64) *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[fileID].StorageLocationID
}

// OverCapacity lists folders holding more files than their capacity.
func (s *MemStore) OverCapacity() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var over []int64
	for id, loc := range s.locations {
		if loc.FolderCapacity != nil && s.countFilesIn(id) > *loc.FolderCapacity {
			over = append(over, id)
		}
	}
	return over
}

func (s *MemStore) countFilesIn(id int64) int {
	n := 0
	for _, f := range s.files {
		if f.StorageLocationID != nil && *f.StorageLocationID == id {
			n++
		}
	}
	return n
}

func (s *MemStore) inScope(scope models.Scope) []models.StorageLocation {
	var rows []models.StorageLocation
	for _, loc := range s.locations {
		loc := loc
		if scope.Contains(&loc) {
			rows = append(rows, loc)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// Repositories

func (s *MemStore) Locations() repositories.StorageLocationRepository { return &memLocations{s} }
func (s *MemStore) Files() repositories.FileRepository                { return &memFiles{s} }
func (s *MemStore) Directory() repositories.DirectoryRepository       { return &memDirectory{s} }

type memLocations struct{ s *MemStore }

func (r *memLocations) LockScope(ctx context.Context, scope models.Scope) error {
	return r.s.lockScope(ctx, scope)
}

func (r *memLocations) Create(ctx context.Context, loc *models.StorageLocation) error {
	if r.s.CreateHook != nil {
		if err := r.s.CreateHook(*loc); err != nil {
			return err
		}
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.locations {
		existing := existing
		if loc.Scope().Contains(&existing) && existing.UnitType == loc.UnitType &&
			existing.UnitName == loc.UnitName && sameParent(existing.ParentID, loc.ParentID) {
			return domain.Validation("a unit named %q already exists at this level", loc.UnitName)
		}
	}
	s.nextID++
	loc.ID = s.nextID
	loc.CreatedAt = time.Now()
	s.locations[loc.ID] = *loc
	id := loc.ID
	s.write(ctx, func() { delete(s.locations, id) })
	return nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *memLocations) GetByID(ctx context.Context, id int64) (*models.StorageLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	loc, ok := r.s.locations[id]
	if !ok {
		return nil, domain.NotFound("storage location", id)
	}
	return &loc, nil
}

func (r *memLocations) GetByIDForUpdate(ctx context.Context, id int64) (*models.StorageLocation, error) {
	return r.GetByID(ctx, id)
}

func (r *memLocations) UpdateCapacity(ctx context.Context, id int64, capacity int) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[id]
	if !ok || loc.UnitType != models.UnitTypeFolder {
		return domain.NotFound("folder", id)
	}
	previous := loc
	loc.FolderCapacity = &capacity
	s.locations[id] = loc
	s.write(ctx, func() { s.locations[id] = previous })
	return nil
}

func (r *memLocations) Delete(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locations[id]
	if !ok {
		return domain.NotFound("storage location", id)
	}
	if s.countFilesIn(id) > 0 {
		return domain.New(domain.CodeHasFiles, "storage location %d is still referenced", id)
	}
	delete(s.locations, id)
	s.write(ctx, func() { s.locations[id] = loc })
	return nil
}

func (r *memLocations) ListByScope(ctx context.Context, scope models.Scope) ([]models.StorageLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.inScope(scope), nil
}

func (r *memLocations) ListScopes(ctx context.Context) ([]models.Scope, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]models.Scope)
	for _, loc := range r.s.locations {
		seen[loc.Scope().Key()] = loc.Scope()
	}
	scopes := make([]models.Scope, 0, len(seen))
	for _, scope := range seen {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].Key() < scopes[j].Key() })
	return scopes, nil
}

func (r *memLocations) GetAncestry(ctx context.Context, id int64) ([]models.StorageLocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var reversed []models.StorageLocation
	current, ok := r.s.locations[id]
	for depth := 0; ok && depth <= 16; depth++ {
		reversed = append(reversed, current)
		if current.ParentID == nil {
			break
		}
		current, ok = r.s.locations[*current.ParentID]
	}
	out := make([]models.StorageLocation, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		out = append(out, reversed[i])
	}
	return out, nil
}

func (r *memLocations) FindFirstFreeFolder(ctx context.Context, scope models.Scope) (*models.FolderUsage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, loc := range r.s.inScope(scope) {
		if loc.UnitType != models.UnitTypeFolder {
			continue
		}
		usage := &models.FolderUsage{StorageLocation: loc, CurrentFiles: r.s.countFilesIn(loc.ID)}
		if usage.HasSpace() {
			return usage, nil
		}
	}
	return nil, nil
}

func (r *memLocations) CountByType(ctx context.Context, scope models.Scope, unitType models.UnitType) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, loc := range r.s.inScope(scope) {
		if loc.UnitType == unitType {
			n++
		}
	}
	return n, nil
}

func (r *memLocations) CountChildren(ctx context.Context, id int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, loc := range r.s.locations {
		if loc.ParentID != nil && *loc.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r *memLocations) ListUnitNames(ctx context.Context, scope models.Scope, unitType models.UnitType) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var names []string
	for _, loc := range r.s.inScope(scope) {
		if loc.UnitType == unitType {
			names = append(names, loc.UnitName)
		}
	}
	return names, nil
}

func (r *memLocations) ListFolderUsage(ctx context.Context, scope models.Scope) ([]models.FolderUsage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var usage []models.FolderUsage
	for _, loc := range r.s.inScope(scope) {
		if loc.UnitType == models.UnitTypeFolder {
			usage = append(usage, models.FolderUsage{StorageLocation: loc, CurrentFiles: r.s.countFilesIn(loc.ID)})
		}
	}
	return usage, nil
}

type memFiles struct{ s *MemStore }

func (r *memFiles) GetByID(ctx context.Context, id int64) (*models.StoredFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.files[id]
	if !ok {
		return nil, domain.NotFound("file", id)
	}
	return &f, nil
}

func (r *memFiles) CountFilesIn(ctx context.Context, storageLocationID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.countFilesIn(storageLocationID), nil
}

func (r *memFiles) CountsByScope(ctx context.Context, scope models.Scope) (map[int64]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[int64]int)
	for _, loc := range r.s.inScope(scope) {
		if n := r.s.countFilesIn(loc.ID); n > 0 {
			counts[loc.ID] = n
		}
	}
	return counts, nil
}

func (r *memFiles) SetStorageLocation(ctx context.Context, fileID int64, storageLocationID *int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return domain.NotFound("file", fileID)
	}
	if storageLocationID != nil {
		if _, ok := s.locations[*storageLocationID]; !ok {
			return domain.New(domain.CodeNotFound, "storage location for file %d not found", fileID)
		}
	}
	previous := f
	f.StorageLocationID = storageLocationID
	s.files[fileID] = f
	s.write(ctx, func() { s.files[fileID] = previous })
	return nil
}

func (r *memFiles) ListByLocation(ctx context.Context, storageLocationID int64) ([]models.StoredFile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	files := []models.StoredFile{}
	for _, f := range r.s.files {
		if f.StorageLocationID != nil && *f.StorageLocationID == storageLocationID {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

type memDirectory struct{ s *MemStore }

func (r *memDirectory) GetScopeNames(ctx context.Context, scope models.Scope) (*models.ScopeNames, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	name, ok := r.s.departments[scope.DepartmentID]
	if !ok {
		return nil, domain.NotFound("department", scope.DepartmentID)
	}
	names := &models.ScopeNames{DepartmentName: name}
	if scope.SubDepartmentID != nil {
		sub, ok := r.s.subDepartments[*scope.SubDepartmentID]
		if !ok || sub.DepartmentID != scope.DepartmentID {
			return nil, domain.New(domain.CodeInvalidScope, "sub-department %d does not belong to department %d",
				*scope.SubDepartmentID, scope.DepartmentID)
		}
		subName := sub.Name
		names.SubDepartmentName = &subName
	}
	return names, nil
}

func (r *memDirectory) GetDepartmentOfSubDepartment(ctx context.Context, subDepartmentID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub, ok := r.s.subDepartments[subDepartmentID]
	if !ok {
		return 0, domain.NotFound("sub-department", subDepartmentID)
	}
	return sub.DepartmentID, nil
}

func (r *memDirectory) CountUsers(ctx context.Context, scope models.Scope) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, u := range r.s.users {
		if u.DepartmentID != scope.DepartmentID {
			continue
		}
		if scope.SubDepartmentID == nil || (u.SubDepartmentID != nil && *u.SubDepartmentID == *scope.SubDepartmentID) {
			n++
		}
	}
	return n, nil
}
