package autobuy

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// Clicker performs one mouse click at a screen position.
type Clicker interface {
	Click(ctx context.Context, p Point) error
}

// PyAutoGUI clicks through the pyautogui Python package.
type PyAutoGUI struct {
	// Python is the interpreter; empty means "py" on Windows and "python3" elsewhere.
	Python string
}

func (c PyAutoGUI) interpreter() string {
	if c.Python != "" {
		return c.Python
	}
	if runtime.GOOS == "windows" {
		return "py"
	}
	return "python3"
}

func (c PyAutoGUI) Click(ctx context.Context, p Point) error {
	script := fmt.Sprintf("import pyautogui; pyautogui.FAILSAFE = False; pyautogui.click(%d, %d)", p.X, p.Y)
	out, err := exec.CommandContext(ctx, c.interpreter(), "-c", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pyautogui click at (%d, %d): %w: %s", p.X, p.Y, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CheckRequirements verifies that the interpreter can import pyautogui.
func (c PyAutoGUI) CheckRequirements(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, c.interpreter(), "-c", "import pyautogui").CombinedOutput()
	if err != nil {
		return fmt.Errorf("pyautogui unavailable (pip install pyautogui): %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DryRun only logs the clicks it would make.
type DryRun struct {
	Logger *logrus.Logger
}

func (d DryRun) Click(_ context.Context, p Point) error {
	d.Logger.WithFields(logrus.Fields{"x": p.X, "y": p.Y}).Debug("Dry-run click")
	return nil
}

// NewClicker picks an implementation by name ("pyautogui" or "dry-run").
func NewClicker(name string, logger *logrus.Logger) (Clicker, error) {
	switch strings.ToLower(name) {
	case "", "pyautogui":
		return PyAutoGUI{}, nil
	case "dry-run", "dryrun":
		return DryRun{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown clicker %q", name)
	}
}
