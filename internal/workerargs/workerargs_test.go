package workerargs

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("ValidArgv", func(t *testing.T) {
		opts, err := Parse([]string{"ssh", "--target", "10.0.0.1:22", "-U", "users.txt", "-P", "rockyou.txt", "-c", "25"})
		if err != nil {
			t.Fatalf("expected valid argv, got %v", err)
		}
		if opts.Plugin != "ssh" {
			t.Errorf("expected plugin ssh, got %q", opts.Plugin)
		}
		if opts.Target != "10.0.0.1:22" {
			t.Errorf("expected target, got %q", opts.Target)
		}
		if opts.Concurrency != 25 {
			t.Errorf("expected concurrency 25, got %d", opts.Concurrency)
		}
	})

	t.Run("DefaultsApplied", func(t *testing.T) {
		opts, err := Parse([]string{"ftp", "--targets", "hosts.txt"})
		if err != nil {
			t.Fatalf("expected valid argv, got %v", err)
		}
		if opts.Concurrency != 10 {
			t.Errorf("expected default concurrency 10, got %d", opts.Concurrency)
		}
		if opts.TimeoutMS != 5000 {
			t.Errorf("expected default timeout 5000, got %d", opts.TimeoutMS)
		}
	})

	t.Run("UnknownFlag", func(t *testing.T) {
		if err := Validate([]string{"ssh", "--target", "x", "--warp-speed"}); err == nil {
			t.Error("expected error for unknown flag")
		}
	})

	t.Run("MissingPlugin", func(t *testing.T) {
		err := Validate([]string{"--target", "10.0.0.1"})
		if err == nil || !strings.Contains(err.Error(), "plugin") {
			t.Errorf("expected missing plugin error, got %v", err)
		}
	})

	t.Run("UnknownPlugin", func(t *testing.T) {
		err := Validate([]string{"warpdrive", "--target", "10.0.0.1"})
		if err == nil || !strings.Contains(err.Error(), "unknown plugin") {
			t.Errorf("expected unknown plugin error, got %v", err)
		}
	})

	t.Run("MissingTarget", func(t *testing.T) {
		err := Validate([]string{"ssh"})
		if err == nil || !strings.Contains(err.Error(), "--target") {
			t.Errorf("expected missing target error, got %v", err)
		}
	})

	t.Run("ExtraPositional", func(t *testing.T) {
		if err := Validate([]string{"ssh", "extra", "--target", "x"}); err == nil {
			t.Error("expected error for extra positional argument")
		}
	})

	t.Run("NonPositiveConcurrency", func(t *testing.T) {
		if err := Validate([]string{"ssh", "--target", "x", "-c", "0"}); err == nil {
			t.Error("expected error for zero concurrency")
		}
	})

	t.Run("NegativeRateLimit", func(t *testing.T) {
		if err := Validate([]string{"ssh", "--target", "x", "--rate-limit=-1"}); err == nil {
			t.Error("expected error for negative rate limit")
		}
	})
}
