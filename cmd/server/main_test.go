package main

import (
	"strings"
	"testing"
)

func TestStart_InvalidConfigurationReturnsError(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "zookeeper")

	err := start()
	if err == nil {
		t.Fatal("Expected start to fail on an invalid lock backend")
	}
	if !strings.Contains(err.Error(), "failed to load configuration") || !strings.Contains(err.Error(), "zookeeper") {
		t.Errorf("Expected configuration error mentioning the backend, got %v", err)
	}
}
