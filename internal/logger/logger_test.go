package logger

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/AnshRaj112/spokies-backend/internal/config"
)

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(&Options{Level: "debug", Format: FormatText, Component: "test", Output: &buf})

	L().Info("hello spokies", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello spokies") {
		t.Errorf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Errorf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected structured field, got: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(&Options{Level: "info", Format: FormatJSON, Component: "json_test", Output: &buf})

	L().Info("json log", "foo", "bar")

	out := buf.String()
	if !strings.Contains(out, `"msg":"json log"`) {
		t.Errorf("expected JSON message, got: %s", out)
	}
	if !strings.Contains(out, `"component":"json_test"`) {
		t.Errorf("expected component in JSON, got: %s", out)
	}
	if !strings.Contains(out, `"foo":"bar"`) {
		t.Errorf("expected structured field in JSON, got: %s", out)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Init(&Options{Level: "error", Format: FormatText, Output: &buf})

	L().Info("should not appear")
	L().Error("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("info log should not appear, got: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("error log should appear, got: %s", out)
	}
}

func TestLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	Init(&Options{Level: "debug", Format: FormatText, Output: &buf})

	With("req_id", "123").Info("processing request")

	if !strings.Contains(buf.String(), "req_id=123") {
		t.Errorf("expected req_id field, got: %s", buf.String())
	}
}

func TestLogger_InitFromConfig(t *testing.T) {
	l := InitFromConfig(&config.Config{LogLevel: "warn", LogFormat: "JSON"})
	if l == nil {
		t.Fatal("expected logger")
	}
	if opts.Format != FormatJSON {
		t.Errorf("expected json format, got %q", opts.Format)
	}
	if opts.Component != "api" {
		t.Errorf("expected api component, got %q", opts.Component)
	}
}

func TestLogger_ReinitKeepsEarlierFormat(t *testing.T) {
	var text, js bytes.Buffer
	textLog := Init(&Options{Level: "info", Format: FormatText, Output: &text})
	Init(&Options{Level: "info", Format: FormatJSON, Output: &js})

	textLog.Info("after reinit")

	stamp := regexp.MustCompile(`time="\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}"`)
	if !stamp.MatchString(text.String()) {
		t.Errorf("expected DateTime stamp on text logger, got: %s", text.String())
	}
}

func TestLogger_ConcurrentInitAndLog(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			f := FormatText
			if i%2 == 0 {
				f = FormatJSON
			}
			Init(&Options{Level: "debug", Format: f, Output: io.Discard})
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				L().Debug("tick", "n", j)
			}
		}()
	}
	wg.Wait()
}
