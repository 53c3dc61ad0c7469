package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestStore(t *testing.T) *GormStore {
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
	if err := db.AutoMigrate(&Document{}); err != nil {
		t.Fatalf("failed to migrate documents schema: %v", err)
	}
	docStore, err := NewGormStore(GormStoreConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1700000000, 0).UTC()
		},
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return docStore
}

func decodeDocument(t *testing.T, docStore *GormStore, collection, id string) map[string]interface{} {
	t.Helper()
	record, err := docStore.FindOne(context.Background(), collection, id)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	body := map[string]interface{}{}
	if err := DecodeBody(record, &body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return body
}

func TestInsertEnforcesUniqueKey(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	first, err := docStore.Insert(ctx, CollectionUsers, "first@example.com", map[string]interface{}{"email": "first@example.com"})
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if first == "" {
		t.Fatalf("expected generated id")
	}

	_, err = docStore.Insert(ctx, CollectionUsers, "first@example.com", map[string]interface{}{"email": "first@example.com"})
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestInsertAllowsSameKeyAcrossCollections(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	if _, err := docStore.Insert(ctx, CollectionMessages, "user@example.com", map[string]interface{}{"user_email": "user@example.com"}); err != nil {
		t.Fatalf("message chain insert failed: %v", err)
	}
	if _, err := docStore.Insert(ctx, CollectionNotifications, "user@example.com", map[string]interface{}{"user_email": "user@example.com"}); err != nil {
		t.Fatalf("notification chain insert failed: %v", err)
	}
}

func TestFindByKeyReturnsNotFoundForMissingDocument(t *testing.T) {
	docStore := openTestStore(t)

	_, err := docStore.FindByKey(context.Background(), CollectionUsers, "absent@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateOneSetsNestedFields(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	id, err := docStore.Insert(ctx, CollectionUsers, "user@example.com", map[string]interface{}{"email": "user@example.com"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	modified, err := docStore.UpdateOne(ctx, CollectionUsers, id, map[string]interface{}{
		"messageChain_id":        "chain-1",
		"membershipDetails.tier": "gold",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if modified != 1 {
		t.Fatalf("expected one modified document, got %d", modified)
	}

	out := decodeDocument(t, docStore, CollectionUsers, id)
	if out["messageChain_id"] != "chain-1" {
		t.Fatalf("expected chain id to be set, got %#v", out["messageChain_id"])
	}
	membership, ok := out["membershipDetails"].(map[string]interface{})
	if !ok || membership["tier"] != "gold" {
		t.Fatalf("expected nested tier field, got %#v", out["membershipDetails"])
	}
}

func TestUpdateOneReportsZeroForMissingDocument(t *testing.T) {
	docStore := openTestStore(t)

	modified, err := docStore.UpdateOne(context.Background(), CollectionUsers, "missing", map[string]interface{}{"email": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if modified != 0 {
		t.Fatalf("expected zero modified documents, got %d", modified)
	}
}

func TestIncrementFieldStartsFromZero(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	id, err := docStore.Insert(ctx, CollectionUsers, "user@example.com", map[string]interface{}{"email": "user@example.com"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := docStore.IncrementField(ctx, CollectionUsers, id, "stats.activeRentals", 1); err != nil {
		t.Fatalf("first increment failed: %v", err)
	}
	if err := docStore.IncrementField(ctx, CollectionUsers, id, "stats.activeRentals", 2); err != nil {
		t.Fatalf("second increment failed: %v", err)
	}

	out := decodeDocument(t, docStore, CollectionUsers, id)
	stats := out["stats"].(map[string]interface{})
	if stats["activeRentals"] != float64(3) {
		t.Fatalf("expected activeRentals 3, got %#v", stats["activeRentals"])
	}
}

func TestPushArrayPreservesOrderAndDuplicates(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	id, err := docStore.Insert(ctx, CollectionGadgets, "", map[string]interface{}{
		"availability": map[string]interface{}{
			"blockedDates": []string{"2024-05-02"},
		},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := docStore.PushArray(ctx, CollectionGadgets, id, "availability.blockedDates", "2024-05-01", "2024-05-02"); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	out := decodeDocument(t, docStore, CollectionGadgets, id)
	availability := out["availability"].(map[string]interface{})
	blocked := availability["blockedDates"].([]interface{})
	expected := []string{"2024-05-02", "2024-05-01", "2024-05-02"}
	if len(blocked) != len(expected) {
		t.Fatalf("expected %d blocked dates, got %d", len(expected), len(blocked))
	}
	for index, date := range expected {
		if blocked[index] != date {
			t.Fatalf("expected blocked[%d] = %q, got %#v", index, date, blocked[index])
		}
	}
}

func TestPullArrayRemovesEveryMatch(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	id, err := docStore.Insert(ctx, CollectionUsers, "user@example.com", map[string]interface{}{
		"wishlist": []string{"gadget-1", "gadget-2", "gadget-1"},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	removed, err := docStore.PullArray(ctx, CollectionUsers, id, "wishlist", "gadget-1")
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected two removals, got %d", removed)
	}

	out := decodeDocument(t, docStore, CollectionUsers, id)
	wishlist := out["wishlist"].([]interface{})
	if len(wishlist) != 1 || wishlist[0] != "gadget-2" {
		t.Fatalf("unexpected wishlist after pull: %#v", wishlist)
	}
}

func TestDeleteOneReportsDeletedCount(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	id, err := docStore.Insert(ctx, CollectionRentalOrders, "", map[string]interface{}{"gadget_id": "g-1"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	deleted, err := docStore.DeleteOne(ctx, CollectionRentalOrders, id)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected one deletion, got %d", deleted)
	}

	deleted, err = docStore.DeleteOne(ctx, CollectionRentalOrders, id)
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected zero deletions on repeat, got %d", deleted)
	}
}

func TestMutateAppliesCombinedEditAtomically(t *testing.T) {
	docStore := openTestStore(t)
	ctx := context.Background()

	id, err := docStore.Insert(ctx, CollectionMessages, "user@example.com", map[string]interface{}{
		"user_email":    "user@example.com",
		"message_chain": []interface{}{},
		"total_count":   0,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	err = docStore.Mutate(ctx, CollectionMessages, id, func(body map[string]interface{}) error {
		if err := appendToArray(body, "message_chain", map[string]interface{}{"content": "hello"}); err != nil {
			return err
		}
		return addToField(body, "total_count", 1)
	})
	if err != nil {
		t.Fatalf("mutate failed: %v", err)
	}

	out := decodeDocument(t, docStore, CollectionMessages, id)
	entries := out["message_chain"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if out["total_count"] != float64(1) {
		t.Fatalf("expected total_count 1, got %#v", out["total_count"])
	}
}

func TestMutateMissingDocumentReturnsNotFound(t *testing.T) {
	docStore := openTestStore(t)

	err := docStore.Mutate(context.Background(), CollectionMessages, "missing", func(map[string]interface{}) error {
		return nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
