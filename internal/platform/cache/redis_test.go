package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_ = client.Close()

	mr.Close()
	if _, err := New(context.Background(), mr.Addr(), "", 0); err == nil {
		t.Fatalf("expected ping failure against closed server")
	}
}
