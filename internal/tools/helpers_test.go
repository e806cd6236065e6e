package tools

import (
	"strings"
	"testing"
)

func TestValidateSessionID(t *testing.T) {
	t.Run("ValidUUID", func(t *testing.T) {
		if err := validateSessionID("0f8fad5b-d9cb-469f-a165-70867728950e"); err != nil {
			t.Errorf("Expected valid UUID to pass, got: %v", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if err := validateSessionID(""); err == nil {
			t.Error("Expected error for empty session ID")
		}
	})

	t.Run("NotAUUID", func(t *testing.T) {
		if err := validateSessionID("session-42"); err == nil {
			t.Error("Expected error for non-UUID session ID")
		}
	})

	t.Run("TruncatedUUID", func(t *testing.T) {
		if err := validateSessionID("0f8fad5b-d9cb-469f-a165"); err == nil {
			t.Error("Expected error for truncated UUID")
		}
	})
}

func TestValidateClient(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		if err := validateClient("cli"); err != nil {
			t.Errorf("Expected valid client to pass, got: %v", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if err := validateClient(""); err == nil {
			t.Error("Expected error for empty client")
		}
	})

	t.Run("TooLong", func(t *testing.T) {
		if err := validateClient(strings.Repeat("a", 201)); err == nil {
			t.Error("Expected error for client over 200 characters")
		}
	})
}
