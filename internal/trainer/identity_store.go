package trainer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lowaak/smart-trainer/virtual-ride/internal/bt"
	"github.com/lowaak/smart-trainer/virtual-ride/internal/logging"
)

type identityFileData struct {
	Device bt.DeviceIdentity `json:"device"`
}

// FileIdentityStore keeps the last bound bike in a small JSON file
type FileIdentityStore struct {
	filePath string
	logger   logging.Logger
}

var _ bt.IdentityStore = (*FileIdentityStore)(nil)

func NewFileIdentityStore(filePath string, logger logging.Logger) *FileIdentityStore {
	if logger == nil {
		panic("FileIdentityStore: logger cannot be nil")
	}
	return &FileIdentityStore{filePath: filePath, logger: logger}
}

func (p *FileIdentityStore) LoadIdentity() (bt.DeviceIdentity, bool, error) {
	raw, err := os.ReadFile(p.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Printf("FileIdentityStore: load %s (no existing file)", p.filePath)
		return bt.DeviceIdentity{}, false, nil
	}
	if err != nil {
		return bt.DeviceIdentity{}, false, fmt.Errorf("read %s: %w", p.filePath, err)
	}
	var data identityFileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return bt.DeviceIdentity{}, false, fmt.Errorf("parse %s: %w", p.filePath, err)
	}
	if data.Device.IsZero() {
		return bt.DeviceIdentity{}, false, nil
	}
	p.logger.Printf("FileIdentityStore: load %s -> %s", p.filePath, data.Device)
	return data.Device, true, nil
}

func (p *FileIdentityStore) SaveIdentity(device bt.DeviceIdentity) error {
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	raw, err := json.MarshalIndent(identityFileData{Device: device}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	// write then rename so a crash never leaves a half-written file
	tmp := p.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.filePath); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	p.logger.Printf("FileIdentityStore: save %s -> %s", p.filePath, device)
	return nil
}
