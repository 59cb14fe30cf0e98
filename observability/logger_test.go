package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLogger_Development(t *testing.T) {
	InitLogger(false)

	if Logger == nil {
		t.Error("Logger should not be nil after initialization")
	}
}

func TestInitLogger_Production(t *testing.T) {
	InitLogger(true)

	if Logger == nil {
		t.Error("Logger should not be nil after initialization")
	}
}

func TestSetOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, true, slog.LevelInfo)

	Info("json message", "ticker", "AAPL")
	if !strings.Contains(buf.String(), `"msg":"json message"`) {
		t.Errorf("expected JSON output, got %s", buf.String())
	}

	buf.Reset()
	Debug("hidden")
	if buf.Len() != 0 {
		t.Error("debug should be filtered at info level")
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, false, slog.LevelDebug)

	WithContext(context.Background()).Info("no id")
	if strings.Contains(buf.String(), "request_id") {
		t.Error("request_id should be absent without an ID in context")
	}

	buf.Reset()
	ctx := ContextWithRequestID(context.Background(), "req-123")
	WithContext(ctx).Info("with id")
	if !strings.Contains(buf.String(), "request_id=req-123") {
		t.Errorf("expected request_id field, got %s", buf.String())
	}

	if RequestIDFromContext(ctx) != "req-123" {
		t.Error("RequestIDFromContext should return the stored ID")
	}
}

func TestWithContext_NilLogger(t *testing.T) {
	Logger = nil
	if WithContext(context.Background()) == nil {
		t.Error("WithContext should initialize the logger")
	}
}

func TestLoggingFunctions(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	Logger = slog.New(handler)

	t.Run("Info", func(t *testing.T) {
		buf.Reset()
		Info("test info message", "key", "value")
		if !strings.Contains(buf.String(), "test info message") {
			t.Error("Info should log the message")
		}
		if !strings.Contains(buf.String(), "key=value") {
			t.Error("Info should log the key-value pair")
		}
	})

	t.Run("Warn", func(t *testing.T) {
		buf.Reset()
		Warn("test warn message")
		if !strings.Contains(buf.String(), "WARN") {
			t.Error("Warn should log at WARN level")
		}
	})

	t.Run("Error", func(t *testing.T) {
		buf.Reset()
		Error("test error message")
		if !strings.Contains(buf.String(), "ERROR") {
			t.Error("Error should log at ERROR level")
		}
	})

	t.Run("Debug", func(t *testing.T) {
		buf.Reset()
		Debug("test debug message")
		if !strings.Contains(buf.String(), "DEBUG") {
			t.Error("Debug should log at DEBUG level")
		}
	})

	t.Run("WithTicker", func(t *testing.T) {
		buf.Reset()
		WithTicker("MSFT").Info("ticker message")
		if !strings.Contains(buf.String(), "ticker=MSFT") {
			t.Error("WithTicker should add the ticker field")
		}
	})

	t.Run("WithError", func(t *testing.T) {
		buf.Reset()
		WithError(errors.New("upstream down")).Warn("error message")
		if !strings.Contains(buf.String(), "upstream down") {
			t.Error("WithError should add the error field")
		}
	})
}
