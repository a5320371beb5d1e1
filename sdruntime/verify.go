package sdruntime

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var (
	checksumMu sync.RWMutex

	// modelChecksums maps model file names to their expected SHA256.
	// Models not listed load without verification.
	modelChecksums = map[string]string{
		"sd-v1-5.safetensors": "6ce0161689b3853acaa03779ec93eafe75a02f4ced659bee03f50797806fa2fa",
	}
)

// VerifyModelChecksum checks modelPath against the registered checksum for
// its file name. Unregistered models pass.
func VerifyModelChecksum(modelPath string) error {
	expected, ok := ExpectedChecksum(filepath.Base(modelPath))
	if !ok {
		return nil
	}

	actual, err := CalculateChecksum(modelPath)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrModelCorrupted, expected, actual)
	}
	return nil
}

// CalculateChecksum streams filePath through SHA256 and returns the hex digest.
func CalculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, filePath)
		}
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ExpectedChecksum returns the registered checksum for a model file name.
func ExpectedChecksum(modelName string) (string, bool) {
	checksumMu.RLock()
	defer checksumMu.RUnlock()
	checksum, ok := modelChecksums[modelName]
	return checksum, ok
}

// RegisterModelChecksum adds or replaces a model checksum.
func RegisterModelChecksum(modelName, checksum string) {
	checksumMu.Lock()
	defer checksumMu.Unlock()
	modelChecksums[modelName] = checksum
}
