package hardware

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dougsko/cwbeacon/pkg/settings"
)

// DefaultEEPROMSize matches an 8 KiB serial EEPROM
const DefaultEEPROMSize = 0x2000

// FileEEPROM implements settings.Store over an EEPROM image file. The
// settings record lives at settings.Address and is written a page at a time.
type FileEEPROM struct {
	path string
	size int64
	mu   sync.Mutex
}

// NewFileEEPROM creates a store backed by the image at path
func NewFileEEPROM(path string) *FileEEPROM {
	return &FileEEPROM{path: path, size: DefaultEEPROMSize}
}

// ReadBeaconConfig reads the settings record. A missing or short image reads
// as erased memory.
func (e *FileEEPROM) ReadBeaconConfig() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := erased(settings.PersistedSize)

	f, err := os.Open(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return buf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open eeprom image: %w", err)
	}
	defer f.Close()

	n, err := f.ReadAt(buf, settings.Address)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read eeprom image: %w", err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = settings.ErasedByte
	}
	return buf, nil
}

// WriteBeaconConfig writes data at the settings address in page-sized chunks
func (e *FileEEPROM) WriteBeaconConfig(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if settings.Address+int64(len(data)) > e.size {
		return fmt.Errorf("record of %d bytes does not fit eeprom", len(data))
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return fmt.Errorf("failed to create eeprom directory: %w", err)
	}

	f, err := os.OpenFile(e.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open eeprom image: %w", err)
	}
	defer f.Close()

	if err := e.formatLocked(f); err != nil {
		return err
	}

	for off := 0; off < len(data); off += settings.PageSize {
		end := off + settings.PageSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := f.WriteAt(data[off:end], settings.Address+int64(off)); err != nil {
			return fmt.Errorf("failed to write eeprom page at 0x%04X: %w", settings.Address+off, err)
		}
	}

	return f.Sync()
}

// formatLocked grows a new or short image to full size with erased bytes
func (e *FileEEPROM) formatLocked(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat eeprom image: %w", err)
	}
	if info.Size() >= e.size {
		return nil
	}

	if _, err := f.WriteAt(erased(int(e.size-info.Size())), info.Size()); err != nil {
		return fmt.Errorf("failed to format eeprom image: %w", err)
	}
	return nil
}

func erased(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = settings.ErasedByte
	}
	return buf
}
