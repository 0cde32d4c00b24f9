package hypershare

import "testing"

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Addr != ":8080" {
		t.Errorf("Expected default addr :8080, got %s", config.Addr)
	}
	if config.RootDir != "." {
		t.Errorf("Expected default root ., got %s", config.RootDir)
	}
	if config.IndexFile != "index.html" {
		t.Errorf("Expected default index index.html, got %s", config.IndexFile)
	}
	if config.HistorySize != 512 {
		t.Errorf("Expected default history size 512, got %d", config.HistorySize)
	}
	if config.Logger == nil {
		t.Error("Expected default logger to be set")
	}
	if config.Uploading {
		t.Error("Expected uploads to be disabled by default")
	}
	if config.DirListings {
		t.Error("Expected directory listings to be disabled by default")
	}
	if config.UploadSizeLimit != 0 {
		t.Errorf("Expected no upload limit by default, got %d", config.UploadSizeLimit)
	}
}

func TestConfig_Validate(t *testing.T) {
	config := &Config{}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if config.Addr != ":8080" {
		t.Errorf("Expected empty addr to default, got %s", config.Addr)
	}
	if config.RootDir != "." {
		t.Errorf("Expected empty root to default, got %s", config.RootDir)
	}
	if config.IndexFile != "index.html" {
		t.Errorf("Expected empty index to default, got %s", config.IndexFile)
	}
	if config.HistorySize != 512 {
		t.Errorf("Expected history size to default, got %d", config.HistorySize)
	}
	if config.Logger == nil {
		t.Error("Expected Validate to install a logger")
	}
}

func TestConfig_ValidateRejectsNegativeLimit(t *testing.T) {
	config := DefaultConfig()
	config.UploadSizeLimit = -1
	if err := config.Validate(); err == nil {
		t.Error("Expected a negative upload limit to be rejected")
	}
}
