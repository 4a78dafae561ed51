package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestNewUniversalClientPings(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewUniversalClient(context.Background(), Config{Addrs: []string{mr.Addr()}})
	if err != nil {
		t.Fatalf("NewUniversalClient: %v", err)
	}
	defer client.Close()
}

func TestNewUniversalClientValidation(t *testing.T) {
	if _, err := NewUniversalClient(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without addresses")
	}
	if _, err := NewUniversalClient(context.Background(), Config{Mode: ModeSentinel, Addrs: []string{"127.0.0.1:1"}}); err == nil {
		t.Fatal("expected error for sentinel mode without master name")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("REDIS_ADDRS", "a:6379, b:6379")
	t.Setenv("REDIS_MODE", "Cluster")
	cfg := LoadConfig()
	if cfg.Mode != ModeCluster {
		t.Fatalf("expected cluster mode, got %q", cfg.Mode)
	}
	if len(cfg.Addrs) != 2 || cfg.Addrs[1] != "b:6379" {
		t.Fatalf("unexpected addrs %v", cfg.Addrs)
	}
}

type progressMsg struct {
	Stage string `json:"stage"`
}

func TestTypedPubSubRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ps := NewTypedPubSub[progressMsg](client, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ready := make(chan struct{})
	got := make(chan progressMsg, 1)
	go func() {
		_ = ps.Subscribe(ctx, "lookout:progress:s1", ready, func(m progressMsg) { got <- m })
	}()
	<-ready

	if err := ps.Publish(ctx, "lookout:progress:s1", progressMsg{Stage: "sitemap"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case m := <-got:
		if m.Stage != "sitemap" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}
