package manager

import (
	"context"
	"testing"
)

func TestStatusBeforeLoad(t *testing.T) {
	m := newTestManager(&stubRuntime{handle: newStubHandle("x")})
	s := m.Status()
	if s.Status != "ok" {
		t.Fatalf("status=%q", s.Status)
	}
	if s.ModelLoaded {
		t.Fatalf("model_loaded true before load")
	}
	if s.Config != nil {
		t.Fatalf("config must be empty before load: %+v", s.Config)
	}
	if s.UptimeSeconds < 0 {
		t.Fatalf("uptime=%d", s.UptimeSeconds)
	}
}

func TestStatusAfterLoad(t *testing.T) {
	m, _ := loadedManager("x")
	s := m.Status()
	if !s.ModelLoaded {
		t.Fatalf("model_loaded false after load")
	}
	if s.Config == nil {
		t.Fatalf("config missing after load")
	}
	// Empty capabilities resolve to f32 on cpu.
	if s.Config.ModelID != "test-model" || s.Config.Precision != "f32" || s.Config.Device != "cpu" {
		t.Fatalf("config=%+v", s.Config)
	}
	if s.UptimeSeconds < 0 {
		t.Fatalf("uptime=%d", s.UptimeSeconds)
	}
}

func TestModels(t *testing.T) {
	m, _ := loadedManager("x")
	list := m.Models()
	if list.Object != "list" || len(list.Data) != 1 || list.Data[0].ID != "test-model" {
		t.Fatalf("list=%+v", list)
	}
}

func TestReady(t *testing.T) {
	m := newTestManager(&stubRuntime{handle: newStubHandle("x")})
	if m.Ready() {
		t.Fatalf("ready before load")
	}
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !m.Ready() {
		t.Fatalf("not ready after load")
	}
}
