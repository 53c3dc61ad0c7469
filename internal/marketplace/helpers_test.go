package marketplace

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gadgetswap/backend/internal/store"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&store.Document{}); err != nil {
		t.Fatalf("failed to migrate documents schema: %v", err)
	}
	docStore, err := store.NewGormStore(store.GormStoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return docStore
}

func newTestService(t *testing.T, docStore store.Store, clock func() time.Time) *Service {
	t.Helper()
	if clock == nil {
		clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	}
	service, err := NewService(ServiceConfig{
		Store:  docStore,
		Clock:  clock,
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

// failingStore wraps a real store and fails designated operations, to drive
// saga failure and compensation-failure paths.
type failingStore struct {
	store.Store
	insertFailures map[string]error
	deleteFailures map[string]error
	mutateFailures map[string]error
	updateFailures map[string]error
}

func (f *failingStore) Insert(ctx context.Context, collection, uniqueKey string, doc interface{}) (string, error) {
	if err, ok := f.insertFailures[collection]; ok {
		return "", err
	}
	return f.Store.Insert(ctx, collection, uniqueKey, doc)
}

func (f *failingStore) DeleteOne(ctx context.Context, collection, id string) (int64, error) {
	if err, ok := f.deleteFailures[collection]; ok {
		return 0, err
	}
	return f.Store.DeleteOne(ctx, collection, id)
}

func (f *failingStore) Mutate(ctx context.Context, collection, id string, apply func(map[string]interface{}) error) error {
	if err, ok := f.mutateFailures[collection]; ok {
		return err
	}
	return f.Store.Mutate(ctx, collection, id, apply)
}

func (f *failingStore) UpdateOne(ctx context.Context, collection, id string, patch map[string]interface{}) (int64, error) {
	if err, ok := f.updateFailures[collection]; ok {
		return 0, err
	}
	return f.Store.UpdateOne(ctx, collection, id, patch)
}

func seedUser(t *testing.T, service *Service, email string) string {
	t.Helper()
	userID, err := service.OnboardUser(context.Background(), User{Email: email})
	if err != nil {
		t.Fatalf("failed to onboard %s: %v", email, err)
	}
	return userID
}

func seedGadget(t *testing.T, docStore store.Store, gadget Gadget) string {
	t.Helper()
	id, err := docStore.Insert(context.Background(), store.CollectionGadgets, "", gadget)
	if err != nil {
		t.Fatalf("failed to seed gadget: %v", err)
	}
	return id
}

func loadUser(t *testing.T, docStore store.Store, email string) User {
	t.Helper()
	userDoc, err := docStore.FindByKey(context.Background(), store.CollectionUsers, email)
	if err != nil {
		t.Fatalf("failed to load user %s: %v", email, err)
	}
	var user User
	if err := store.DecodeBody(userDoc, &user); err != nil {
		t.Fatalf("failed to decode user: %v", err)
	}
	return user
}
