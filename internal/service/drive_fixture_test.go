package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	"github.com/noah-isme/sma-drive-api/pkg/bandwidth"
	"github.com/noah-isme/sma-drive-api/pkg/storage"
)

// memStore is an in-memory catalog shared by the repository stubs below. It
// enforces the same uniqueness and staleness rules as the SQL repositories.
type memStore struct {
	mu         sync.Mutex
	drives     map[string]*models.Drive
	folders    map[string]*models.Folder
	files      map[string]*models.File
	activities []models.Activity
	requests   map[string]*models.CopyRequest

	failFileCreateAfter int
	fileCreates         int
}

func newMemStore() *memStore {
	return &memStore{
		drives:              map[string]*models.Drive{},
		folders:             map[string]*models.Folder{},
		files:               map[string]*models.File{},
		requests:            map[string]*models.CopyRequest{},
		failFileCreateAfter: -1,
	}
}

type memDrives struct{ *memStore }

func (m memDrives) GetByID(ctx context.Context, id string) (*models.Drive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if drive, ok := m.drives[id]; ok {
		copy := *drive
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m memDrives) GetByOwner(ctx context.Context, ownerID string) (*models.Drive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, drive := range m.drives {
		if drive.OwnerID == ownerID {
			copy := *drive
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memDrives) CreateIfAbsent(ctx context.Context, drive *models.Drive) (*models.Drive, error) {
	if existing, err := m.GetByOwner(ctx, drive.OwnerID); err == nil {
		return existing, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	drive.ID = uuid.NewString()
	copy := *drive
	m.drives[drive.ID] = &copy
	return drive, nil
}

func (m memDrives) Stats(ctx context.Context, driveID string) (*repository.DriveStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &repository.DriveStats{}
	for _, folder := range m.folders {
		if folder.DriveID == driveID && !folder.IsTrashed() {
			stats.FolderCount++
		}
	}
	for _, file := range m.files {
		if file.DriveID != driveID {
			continue
		}
		if file.IsTrashed() {
			stats.TrashCount++
			stats.TrashBytes += file.FileSize
			continue
		}
		stats.FileCount++
	}
	return stats, nil
}

func (m memDrives) ReserveStorage(ctx context.Context, id string, delta int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drive, ok := m.drives[id]
	if !ok || drive.StorageUsed+delta > drive.StorageLimit {
		return false, nil
	}
	drive.StorageUsed += delta
	return true, nil
}

func (m memDrives) ReleaseStorage(ctx context.Context, id string, delta int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drive, ok := m.drives[id]
	if !ok {
		return false, nil
	}
	drive.StorageUsed -= delta
	if drive.StorageUsed < 0 {
		drive.StorageUsed = 0
	}
	return true, nil
}

type memFolders struct{ *memStore }

func (m memFolders) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if folder, ok := m.folders[id]; ok {
		copy := *folder
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m memFolders) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Folder
	for _, folder := range m.folders {
		if folder.ParentID != nil && *folder.ParentID == parentID {
			out = append(out, *folder)
		}
	}
	sortFolders(out)
	return out, nil
}

func (m memFolders) List(ctx context.Context, filter models.FolderFilter) ([]models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Folder
	for _, folder := range m.folders {
		if folder.DriveID != filter.DriveID || (!filter.IncludeDeleted && folder.IsTrashed()) {
			continue
		}
		if filter.ParentID != nil && (folder.ParentID == nil || *folder.ParentID != *filter.ParentID) {
			continue
		}
		if filter.ParentID == nil && filter.RootOnly && folder.ParentID != nil {
			continue
		}
		out = append(out, *folder)
	}
	sortFolders(out)
	return out, nil
}

func (m memFolders) ListTrashedRoots(ctx context.Context, driveID string) ([]models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Folder
	for _, folder := range m.folders {
		if folder.DriveID != driveID || !folder.IsTrashed() {
			continue
		}
		if folder.ParentID != nil {
			if parent, ok := m.folders[*folder.ParentID]; ok && parent.IsTrashed() {
				continue
			}
		}
		out = append(out, *folder)
	}
	sortFolders(out)
	return out, nil
}

func (m memFolders) FindLiveByName(ctx context.Context, driveID string, parentID *string, name string) (*models.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if folder := m.liveSibling(driveID, parentID, name); folder != nil {
		copy := *folder
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m memFolders) Create(ctx context.Context, folder *models.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if folder.ParentID != nil {
		parent, ok := m.folders[*folder.ParentID]
		if !ok || parent.IsTrashed() || parent.Path != folder.Path[:strings.LastIndex(folder.Path, "/")] {
			return repository.ErrStaleTree
		}
	}
	if m.liveSibling(folder.DriveID, folder.ParentID, folder.Name) != nil {
		return repository.ErrDuplicate
	}
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	folder.CreatedAt = time.Now().UTC()
	folder.UpdatedAt = folder.CreatedAt
	copy := *folder
	m.folders[folder.ID] = &copy
	return nil
}

func (m memFolders) CreateIfAbsent(ctx context.Context, folder *models.Folder) (*models.Folder, bool, error) {
	err := m.Create(ctx, folder)
	if err == nil {
		return folder, true, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return nil, false, err
	}
	existing, err := m.FindLiveByName(ctx, folder.DriveID, folder.ParentID, folder.Name)
	return existing, false, err
}

func (m memFolders) SetPublic(ctx context.Context, id string, public bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	folder, ok := m.folders[id]
	if !ok {
		return sql.ErrNoRows
	}
	folder.IsPublic = public
	return nil
}

func (m *memStore) liveSibling(driveID string, parentID *string, name string) *models.Folder {
	for _, folder := range m.folders {
		if folder.DriveID == driveID && !folder.IsTrashed() && folder.Name == name && sameParent(folder.ParentID, parentID) {
			return folder
		}
	}
	return nil
}

type memFiles struct{ *memStore }

func (m memFiles) GetByID(ctx context.Context, id string) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.files[id]; ok {
		copy := *file
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m memFiles) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.File
	for _, file := range m.files {
		if file.FolderID != nil && *file.FolderID == folderID {
			out = append(out, *file)
		}
	}
	sortFiles(out)
	return out, nil
}

func (m memFiles) List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.File
	for _, file := range m.files {
		if file.DriveID != filter.DriveID || (!filter.IncludeDeleted && file.IsTrashed()) {
			continue
		}
		if filter.FolderID != nil && (file.FolderID == nil || *file.FolderID != *filter.FolderID) {
			continue
		}
		if filter.FolderID == nil && filter.RootOnly && file.FolderID != nil {
			continue
		}
		if filter.Category != "" && file.Category != filter.Category {
			continue
		}
		out = append(out, *file)
	}
	sortFiles(out)
	return out, len(out), nil
}

func (m memFiles) ListTrashedRoots(ctx context.Context, driveID string) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.File
	for _, file := range m.files {
		if file.DriveID != driveID || !file.IsTrashed() {
			continue
		}
		if file.FolderID != nil {
			if parent, ok := m.folders[*file.FolderID]; ok && parent.IsTrashed() {
				continue
			}
		}
		out = append(out, *file)
	}
	sortFiles(out)
	return out, nil
}

func (m memFiles) Create(ctx context.Context, file *models.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFileCreateAfter >= 0 && m.fileCreates >= m.failFileCreateAfter {
		return errors.New("insert failed")
	}
	m.fileCreates++
	if file.FolderID != nil {
		if parent, ok := m.folders[*file.FolderID]; !ok || parent.IsTrashed() {
			return repository.ErrStaleTree
		}
	}
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	file.CreatedAt = time.Now().UTC()
	file.UpdatedAt = file.CreatedAt
	copy := *file
	m.files[file.ID] = &copy
	return nil
}

func (m memFiles) Update(ctx context.Context, id string, update models.FileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok {
		return sql.ErrNoRows
	}
	if update.OriginalName != nil {
		file.OriginalName = *update.OriginalName
	}
	if update.IsPublic != nil {
		file.IsPublic = *update.IsPublic
	}
	return nil
}

func (m memFiles) Move(ctx context.Context, id string, folderID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok {
		return sql.ErrNoRows
	}
	if folderID != nil {
		if parent, ok := m.folders[*folderID]; !ok || parent.IsTrashed() {
			return repository.ErrStaleTree
		}
	}
	file.FolderID = folderID
	return nil
}

func (m memFiles) IncrementCounters(ctx context.Context, id string, downloads, views int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.files[id]; ok {
		file.DownloadCount += int64(downloads)
		file.ViewCount += int64(views)
	}
	return nil
}

func (m memFiles) SetThumbnail(ctx context.Context, id, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file, ok := m.files[id]; ok {
		file.ThumbnailPath = &path
	}
	return nil
}

type memTree struct{ *memStore }

func (m memTree) Relocate(ctx context.Context, relocation repository.Relocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	folder, ok := m.folders[relocation.FolderID]
	if !ok || folder.IsTrashed() || folder.Path != relocation.Paths[0].OldPath {
		return repository.ErrStaleTree
	}
	if relocation.ParentID != nil {
		parent, ok := m.folders[*relocation.ParentID]
		if !ok || parent.IsTrashed() || parent.Path != relocation.ParentPath {
			return repository.ErrStaleTree
		}
	}
	for _, other := range m.folders {
		if other.ID != folder.ID && other.DriveID == folder.DriveID && !other.IsTrashed() &&
			other.Name == relocation.Name && sameParent(other.ParentID, relocation.ParentID) {
			return repository.ErrDuplicate
		}
	}
	if err := m.checkPaths(relocation.Paths[1:]); err != nil {
		return err
	}
	folder.ParentID = relocation.ParentID
	folder.Name = relocation.Name
	m.applyPaths(relocation.Paths)
	return nil
}

func (m memTree) SetTrashed(ctx context.Context, change repository.TrashChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if change.KeepUnderID != "" {
		parent, ok := m.folders[change.KeepUnderID]
		if !ok || parent.IsTrashed() {
			return repository.ErrStaleTree
		}
	}
	if err := m.checkPaths(change.Paths); err != nil {
		return err
	}
	if change.DetachFolderID != "" {
		m.folders[change.DetachFolderID].ParentID = nil
	}
	if change.DetachFileID != "" {
		m.files[change.DetachFileID].FolderID = nil
	}
	m.applyPaths(change.Paths)
	for _, id := range change.FolderIDs {
		m.folders[id].DeletedAt = change.DeletedAt
	}
	for _, id := range change.FileIDs {
		m.files[id].DeletedAt = change.DeletedAt
	}
	return nil
}

func (m memTree) Purge(ctx context.Context, folderIDs, fileIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range fileIDs {
		delete(m.files, id)
	}
	for _, id := range folderIDs {
		delete(m.folders, id)
	}
	return nil
}

func (m *memStore) checkPaths(updates []repository.PathUpdate) error {
	for _, update := range updates {
		folder, ok := m.folders[update.ID]
		if !ok || folder.Path != update.OldPath {
			return repository.ErrStaleTree
		}
	}
	return nil
}

func (m *memStore) applyPaths(updates []repository.PathUpdate) {
	for _, update := range updates {
		m.folders[update.ID].Path = update.NewPath
	}
}

type memActivities struct{ *memStore }

func (m memActivities) Create(ctx context.Context, activity *models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	activity.ID = uuid.NewString()
	m.activities = append(m.activities, *activity)
	return nil
}

func (m memActivities) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Activity
	for i := len(m.activities) - 1; i >= 0; i-- {
		activity := m.activities[i]
		if activity.DriveID != filter.DriveID {
			continue
		}
		if filter.Action != "" && activity.Action != filter.Action {
			continue
		}
		if filter.TargetType != "" && activity.TargetType != filter.TargetType {
			continue
		}
		out = append(out, activity)
	}
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

type memRequests struct{ *memStore }

func (m memRequests) Create(ctx context.Context, request *models.CopyRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	request.ID = uuid.NewString()
	request.Status = models.CopyRequestPending
	request.CreatedAt = time.Now().UTC()
	copy := *request
	m.requests[request.ID] = &copy
	return nil
}

func (m memRequests) GetByID(ctx context.Context, id string) (*models.CopyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if request, ok := m.requests[id]; ok {
		copy := *request
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m memRequests) List(ctx context.Context, filter models.CopyRequestFilter) ([]models.CopyRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CopyRequest
	for _, request := range m.requests {
		if filter.RequesterID != "" && request.RequesterID != filter.RequesterID {
			continue
		}
		if filter.RecipientID != "" && request.RecipientID != filter.RecipientID {
			continue
		}
		if filter.Status != "" && request.Status != filter.Status {
			continue
		}
		out = append(out, *request)
	}
	return out, len(out), nil
}

func (m memRequests) Transition(ctx context.Context, id string, status models.CopyRequestStatus, processedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok || request.Status != models.CopyRequestPending {
		return false, nil
	}
	request.Status = status
	request.ProcessedAt = &processedAt
	return true, nil
}

func (m memRequests) DeletePending(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok || request.Status != models.CopyRequestPending {
		return false, nil
	}
	delete(m.requests, id)
	return true, nil
}

// memContent is an in-memory content store. failCopy makes every Copy fail.
type memContent struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failCopy error
}

func newMemContent() *memContent {
	return &memContent{objects: map[string][]byte{}}
}

func (c *memContent) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[key] = data
	return nil
}

func (c *memContent) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[key]
	if !ok {
		return nil, storage.ErrContentNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *memContent) Copy(ctx context.Context, srcKey, dstKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCopy != nil {
		return c.failCopy
	}
	data, ok := c.objects[srcKey]
	if !ok {
		return storage.ErrContentNotFound
	}
	c.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

func (c *memContent) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.objects[key]; !ok {
		return storage.ErrContentNotFound
	}
	delete(c.objects, key)
	return nil
}

func (c *memContent) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.objects[key]
	return ok
}

func sortFolders(folders []models.Folder) {
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].Name != folders[j].Name {
			return folders[i].Name < folders[j].Name
		}
		return folders[i].ID < folders[j].ID
	})
}

func sortFiles(files []models.File) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].OriginalName != files[j].OriginalName {
			return files[i].OriginalName < files[j].OriginalName
		}
		return files[i].ID < files[j].ID
	})
}

// driveFixture wires every drive service over one memStore.
type driveFixture struct {
	store    *memStore
	content  *memContent
	drives   *DriveService
	quota    *QuotaService
	activity *ActivityService
	folders  *FolderService
	files    *FileService
	trash    *TrashService
	bulk     *BulkService
	copies   *CopyRequestService
}

type fixtureOption func(*FileServiceParams)

func withBandwidth(limiter bandwidth.Limiter) fixtureOption {
	return func(p *FileServiceParams) { p.Bandwidth = limiter }
}

func withThumbnails(generator ThumbnailGenerator) fixtureOption {
	return func(p *FileServiceParams) { p.Thumbnails = generator }
}

func newDriveFixture(t *testing.T, opts ...fixtureOption) *driveFixture {
	t.Helper()
	store := newMemStore()
	content := newMemContent()
	drives := NewDriveService(memDrives{store}, nil, DriveServiceConfig{DefaultStorageLimit: 1000}, nil)
	quota := NewQuotaService(memDrives{store}, drives, nil, nil)
	activity := NewActivityService(memActivities{store}, drives, nil, nil)
	remover := NewContentRemover(content, nil, nil)
	walker := NewTreeWalker(memFolders{store}, memFiles{store})

	folders := NewFolderService(FolderServiceParams{
		Folders:  memFolders{store},
		Files:    memFiles{store},
		Tree:     memTree{store},
		Walker:   walker,
		Activity: activity,
		Drives:   drives,
	})
	fileParams := FileServiceParams{
		Files:    memFiles{store},
		Folders:  memFolders{store},
		Drives:   drives,
		Owners:   memDrives{store},
		Content:  content,
		Quota:    quota,
		Remover:  remover,
		Signer:   storage.NewSignedURLSigner("test-secret", time.Minute),
		Activity: activity,
		Config:   FileServiceConfig{MaxUploadSize: 500, LinkBaseURL: "http://drive.test/api/v1/links/"},
	}
	for _, opt := range opts {
		opt(&fileParams)
	}
	files := NewFileService(fileParams)
	trash := NewTrashService(TrashServiceParams{
		Folders:  memFolders{store},
		Files:    memFiles{store},
		Tree:     memTree{store},
		Walker:   walker,
		Quota:    quota,
		Content:  remover,
		Activity: activity,
		Drives:   drives,
		Summary:  drives,
	})
	bulk := NewBulkService(BulkServiceParams{Folders: folders, Files: files, Trash: trash, Drives: drives})
	copies := NewCopyRequestService(CopyRequestServiceParams{
		Requests:   memRequests{store},
		Folders:    memFolders{store},
		Files:      memFiles{store},
		Duplicator: files,
		Walker:     walker,
		Tree:       memTree{store},
		Quota:      quota,
		Remover:    remover,
		Activity:   activity,
		Drives:     drives,
		Owners:     drives,
	})
	return &driveFixture{
		store:    store,
		content:  content,
		drives:   drives,
		quota:    quota,
		activity: activity,
		folders:  folders,
		files:    files,
		trash:    trash,
		bulk:     bulk,
		copies:   copies,
	}
}

func actor(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID}
}

func (f *driveFixture) mkdir(t *testing.T, user *models.JWTClaims, parentID *string, name string) *models.Folder {
	t.Helper()
	folder, err := f.folders.Create(context.Background(), user, dto.CreateFolderRequest{Name: name, ParentID: parentID})
	require.NoError(t, err)
	return folder
}

func (f *driveFixture) upload(t *testing.T, user *models.JWTClaims, folderID *string, name, body string) *models.File {
	t.Helper()
	file, err := f.files.Upload(context.Background(), user, dto.UploadFileRequest{FolderID: folderID}, FileUpload{
		Filename: name,
		Size:     int64(len(body)),
		Content:  strings.NewReader(body),
	})
	require.NoError(t, err)
	return file
}

func (f *driveFixture) driveOf(t *testing.T, user *models.JWTClaims) *models.Drive {
	t.Helper()
	drive, err := f.drives.Ensure(context.Background(), user.UserID)
	require.NoError(t, err)
	return drive
}

func (f *driveFixture) folder(t *testing.T, id string) *models.Folder {
	t.Helper()
	folder, err := memFolders{f.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return folder
}

func (f *driveFixture) file(t *testing.T, id string) *models.File {
	t.Helper()
	file, err := memFiles{f.store}.GetByID(context.Background(), id)
	require.NoError(t, err)
	return file
}

func (f *driveFixture) actions(driveID string) []models.ActivityAction {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	var out []models.ActivityAction
	for _, activity := range f.store.activities {
		if activity.DriveID == driveID {
			out = append(out, activity.Action)
		}
	}
	return out
}
