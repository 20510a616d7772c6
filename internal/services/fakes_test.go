package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/dkhoid/cloud-data-storage/internal/repository"
	"github.com/dkhoid/cloud-data-storage/internal/storage"
	"github.com/dkhoid/cloud-data-storage/models"
)

// memDB - хранилище строк в памяти с транзакциями через снимок состояния.
// Реализует UserRepository, FileRepository, UsageRepository и Transactor.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users  map[int64]models.User
	files  map[int64]models.File
	usage  map[int64]int64 // user_id -> storage_used за сегодня
	nextID int64

	failCreateFile error
	// quotaGate, если задан, задерживает GetQuota, пока все участники не прочитают квоту.
	quotaGate *sync.WaitGroup
}

func newMemDB() *memDB {
	return &memDB{
		users: make(map[int64]models.User),
		files: make(map[int64]models.File),
		usage: make(map[int64]int64),
	}
}

func (m *memDB) addUser(id, used, limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = models.User{ID: id, Username: "user", StorageUsed: used, StorageLimit: limit}
}

func (m *memDB) user(id int64) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memDB) sumFileSizes(userID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, f := range m.files {
		if f.UserID == userID {
			sum += f.FileSize
		}
	}
	return sum
}

func (m *memDB) fileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

func (m *memDB) todayUsage(userID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.usage[userID]
	return v, ok
}

// --- Transactor ---

func (m *memDB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	users, files, usage, nextID := maps.Clone(m.users), maps.Clone(m.files), maps.Clone(m.usage), m.nextID
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.users, m.files, m.usage, m.nextID = users, files, usage, nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// --- UserRepository ---

func (m *memDB) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, repository.ErrUserExists
		}
	}
	m.nextID++
	created := *user
	created.ID = m.nextID
	m.users[created.ID] = created
	return &created, nil
}

func (m *memDB) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memDB) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *memDB) GetQuota(_ context.Context, userID int64) (*models.Quota, error) {
	m.mu.Lock()
	u, ok := m.users[userID]
	gate := m.quotaGate
	m.mu.Unlock()
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if gate != nil {
		gate.Done()
		gate.Wait()
	}
	return &models.Quota{StorageUsed: u.StorageUsed, StorageLimit: u.StorageLimit}, nil
}

func (m *memDB) IncrementStorageUsed(_ context.Context, userID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	u.StorageUsed += delta
	m.users[userID] = u
	return u.StorageUsed, nil
}

func (m *memDB) TryIncrementStorageUsed(_ context.Context, userID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || u.StorageUsed+delta > u.StorageLimit {
		return 0, repository.ErrQuotaExceeded
	}
	u.StorageUsed += delta
	m.users[userID] = u
	return u.StorageUsed, nil
}

func (m *memDB) DecrementStorageUsed(_ context.Context, userID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	u.StorageUsed = max(0, u.StorageUsed-delta)
	m.users[userID] = u
	return u.StorageUsed, nil
}

func (m *memDB) UpdatePlan(_ context.Context, userID int64, plan string, limit int64, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Plan, u.StorageLimit, u.SubscriptionStatus, u.SubscriptionEndDate = plan, limit, "active", &end
	m.users[userID] = u
	return nil
}

// --- FileRepository ---

func (m *memDB) CreateFile(_ context.Context, file *models.File) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateFile != nil {
		return nil, m.failCreateFile
	}
	m.nextID++
	created := *file
	created.ID = m.nextID
	created.UploadDate = time.Now()
	m.files[created.ID] = created
	return &created, nil
}

func (m *memDB) GetFileByIDAndUser(_ context.Context, fileID, userID int64) (*models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.UserID != userID {
		return nil, repository.ErrFileNotFound
	}
	return &f, nil
}

func (m *memDB) ListFilesByUser(_ context.Context, userID int64) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := make([]models.File, 0)
	for _, f := range m.files {
		if f.UserID == userID {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID > files[j].ID })
	return files, nil
}

func (m *memDB) DeleteFile(_ context.Context, fileID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.UserID != userID {
		return repository.ErrFileNotFound
	}
	delete(m.files, fileID)
	return nil
}

func (m *memDB) TouchLastAccessed(_ context.Context, fileID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if ok {
		now := time.Now()
		f.LastAccessed = &now
		m.files[fileID] = f
	}
	return nil
}

func (m *memDB) CountFilesByUser(ctx context.Context, userID int64) (int64, error) {
	files, _ := m.ListFilesByUser(ctx, userID)
	return int64(len(files)), nil
}

func (m *memDB) ListAllFiles(_ context.Context) ([]models.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	files := make([]models.File, 0, len(m.files))
	for _, f := range m.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

// --- UsageRepository ---

func (m *memDB) UpsertDailyUsage(_ context.Context, userID, storageUsed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[userID] = storageUsed
	return nil
}

func (m *memDB) AddBandwidth(context.Context, int64, int64) error { return nil }

func (m *memDB) ListUsageHistory(_ context.Context, userID int64, _ int) ([]models.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.usage[userID]
	if !ok {
		return []models.UsageRecord{}, nil
	}
	return []models.UsageRecord{{Date: time.Now(), StorageUsed: v}}, nil
}

// memBlobs - объектное хранилище в памяти.
type memBlobs struct {
	mu          sync.Mutex
	objects     map[string]memObject
	failUpload  error
	failDelete  error
	deleteCalls int
}

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string]memObject)}
}

func (b *memBlobs) UploadFile(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if b.failUpload != nil {
		return b.failUpload
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memObject{data: data, contentType: contentType, modified: time.Now()}
	return nil
}

func (b *memBlobs) DownloadFile(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (b *memBlobs) DeleteFile(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteCalls++
	if b.failDelete != nil {
		return b.failDelete
	}
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) ListObjects(_ context.Context, _ string) ([]storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]storage.ObjectInfo, 0, len(b.objects))
	for k, o := range b.objects {
		out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(o.data)), LastModified: o.modified})
	}
	return out, nil
}

func (b *memBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func (b *memBlobs) put(key string, data []byte, modified time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = memObject{data: data, modified: modified}
}

var errInjected = errors.New("injected failure")
