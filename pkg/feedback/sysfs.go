package feedback

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes LED class devices.
const DefaultSysfsRoot = "/sys/class/leds"

// SysfsLED drives a single LED through the Linux leds class. Blink
// patterns use the kernel timer trigger so the pulse keeps running
// without a userspace goroutine.
type SysfsLED struct {
	dir string
	max int
}

// NewSysfsLED opens the LED named name under root (DefaultSysfsRoot
// when root is empty). It fails when the LED does not exist.
func NewSysfsLED(root, name string) (*SysfsLED, error) {
	if root == "" {
		root = DefaultSysfsRoot
	}
	dir := filepath.Join(root, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("open led %s: %w", name, err)
	}
	led := &SysfsLED{dir: dir, max: 255}
	if raw, err := os.ReadFile(filepath.Join(dir, "max_brightness")); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil && v > 0 {
			led.max = v
		}
	}
	return led, nil
}

// Apply switches the LED to the given pattern.
func (l *SysfsLED) Apply(p Pattern) error {
	switch p {
	case PatternListening:
		return l.blink(500, 500)
	case PatternProcessing:
		return l.solid(l.max)
	case PatternSpeaking:
		return l.blink(150, 150)
	case PatternLightSleep:
		return l.solid(l.dim())
	case PatternDeepSleep, PatternOff:
		return l.solid(0)
	case PatternError:
		return l.blink(80, 80)
	default:
		return fmt.Errorf("unknown led pattern %q", p)
	}
}

func (l *SysfsLED) dim() int {
	d := l.max / 8
	if d < 1 {
		d = 1
	}
	return d
}

func (l *SysfsLED) solid(brightness int) error {
	if err := l.write("trigger", "none"); err != nil {
		return err
	}
	return l.write("brightness", strconv.Itoa(brightness))
}

func (l *SysfsLED) blink(onMS, offMS int) error {
	if err := l.write("trigger", "timer"); err != nil {
		return err
	}
	if err := l.write("delay_on", strconv.Itoa(onMS)); err != nil {
		return err
	}
	if err := l.write("delay_off", strconv.Itoa(offMS)); err != nil {
		return err
	}
	return l.write("brightness", strconv.Itoa(l.max))
}

func (l *SysfsLED) write(file, value string) error {
	path := filepath.Join(l.dir, file)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
