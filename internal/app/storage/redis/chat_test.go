package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/chat"
)

func TestChatStoreAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis chat history test")
	}
	ctx := context.Background()
	rdb, err := Dial(ctx, addr, 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer rdb.Close()

	store := NewChatStore(rdb, time.Minute)
	user := "test-" + time.Now().Format("150405.000000")
	defer store.ClearChatMessages(ctx, "it", user)

	for _, text := range []string{"uno", "dos", "tres"} {
		if err := store.AppendChatMessages(ctx, "it", user, 2, chat.Message{Role: chat.RoleUser, Text: text}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	history, err := store.ListChatMessages(ctx, "it", user)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(history) != 2 || history[0].Text != "dos" {
		t.Fatalf("history = %+v", history)
	}
}

func TestKeyIsStudioScoped(t *testing.T) {
	if key("a", "ana") == key("b", "ana") {
		t.Fatal("expected different keys per studio")
	}
}
