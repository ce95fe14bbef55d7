package present

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"waste-bot/api/internal/guide"
)

// Console пишет результат каждого кадра в лог и в Out (если задан).
type Console struct {
	Logger *zap.Logger
	Out    io.Writer
}

func (c *Console) ShowResult(_ context.Context, v guide.View) error {
	if c.Logger != nil {
		c.Logger.Debug("classification result",
			zap.String("label", string(v.Label)),
			zap.Float64("confidence", v.Confidence),
			zap.Bool("accepted", v.Accepted),
		)
	}
	if c.Out == nil {
		return nil
	}
	_, err := fmt.Fprintf(c.Out, "Classification result: %s\n%s\n", v.DisplayName, v.Instruction)
	return err
}

func (c *Console) OpenGuide(_ context.Context, v guide.View) error {
	if c.Logger != nil {
		c.Logger.Info("guide opened",
			zap.String("label", string(v.Label)),
			zap.String("video", v.VideoPath),
		)
	}
	if c.Out == nil {
		return nil
	}
	_, err := fmt.Fprintf(c.Out, "== %s ==\nCategory: %s\n%s\nVideo: %s\n", v.Title, v.DisplayName, v.Instruction, v.VideoPath)
	return err
}

// Page рисует страницу подсказки в HTML-файл и, если Browse=true, открывает её.
type Page struct {
	Dir    string
	Browse bool

	// VideoDir: где лежат ролики; ссылка в странице становится абсолютным путём к файлу.
	VideoDir string

	// Opener открывает файл; по умолчанию системная команда.
	Opener func(path string) error
}

func (p *Page) ShowResult(context.Context, guide.View) error { return nil }

func (p *Page) OpenGuide(_ context.Context, v guide.View) error {
	dir := p.Dir
	if dir == "" {
		dir = "."
	}
	if p.VideoDir != "" && v.VideoPath != "" {
		if abs, err := filepath.Abs(filepath.Join(p.VideoDir, filepath.Base(v.VideoPath))); err == nil {
			v.VideoPath = "file://" + filepath.ToSlash(abs)
		}
	}
	path := filepath.Join(dir, "guide-"+pageName(string(v.Label))+".html")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create guide page: %w", err)
	}
	if err := guide.RenderHTML(f, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("render guide page: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !p.Browse {
		return nil
	}
	open := p.Opener
	if open == nil {
		open = openInBrowser
	}
	return open(path)
}

// pageName оставляет от метки только буквы, цифры, '-' и '_': сырая метка модели
// может содержать разделители пути.
func pageName(label string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, label)
	if strings.Trim(name, "_") == "" {
		return "unknown"
	}
	return name
}

func openInBrowser(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}

// Multi раздаёт вызовы всем презентерам; ошибки собираются вместе.
type Multi []interface {
	ShowResult(ctx context.Context, v guide.View) error
	OpenGuide(ctx context.Context, v guide.View) error
}

func (m Multi) ShowResult(ctx context.Context, v guide.View) error {
	var errs []error
	for _, p := range m {
		if err := p.ShowResult(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) OpenGuide(ctx context.Context, v guide.View) error {
	var errs []error
	for _, p := range m {
		if err := p.OpenGuide(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
