package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"

	"github.com/fwojciec/docsync"
)

// ReadInfo reads the sidecar of a cached dataset.
// Returns nil without error when the dataset was never pulled.
func ReadInfo(p string) (*docsync.StorageInfo, error) {
	b, err := os.ReadFile(InfoPath(p))
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read info: %w", err)
	}

	var info docsync.StorageInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, docsync.Errorf(docsync.EDECODE, "malformed info file %s: %v", InfoPath(p), err)
	}
	return &info, nil
}

// WriteInfo writes the canonical serialization of info as the sidecar of
// the dataset at p.
func WriteInfo(p string, info *docsync.StorageInfo) error {
	b, err := info.Canonical()
	if err != nil {
		return err
	}
	if err := os.WriteFile(InfoPath(p), b, 0644); err != nil {
		return fmt.Errorf("failed to write info: %w", err)
	}
	return nil
}
