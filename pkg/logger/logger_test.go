package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/stretchr/testify/require"
)

type testMethod struct {
	fn    func(msg string, args ...any)
	level slog.Level
}

var (
	LogText         = "Test Log Value"
	CustomFieldName = "Somekey"
	CustomFieldVal  any = "SomeVal"
)

type testLogJSON struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Msg   string    `json:"msg"`
	// Json field needs to match with CustomFieldName
	CustomVal any `json:"SomeKey"`
}

func TestSlogLogger(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})

	// level needs to be set to debug for log all
	handler := slog.NewJSONHandler(buffer, &slog.HandlerOptions{Level: slog.LevelDebug})
	l := logger.New(handler)

	testMethods := []testMethod{
		{fn: l.Error, level: slog.LevelError},
		{fn: l.Warn, level: slog.LevelWarn},
		{fn: l.Info, level: slog.LevelInfo},
		{fn: l.Debug, level: slog.LevelDebug},
	}

	for _, v := range testMethods {
		t.Run(fmt.Sprintf("testing %s", v.level.String()), func(t *testing.T) {
			v.fn(LogText, CustomFieldName, CustomFieldVal)

			got := new(testLogJSON)
			require.NoError(t, json.Unmarshal(buffer.Bytes(), got))
			require.Equal(t, v.level.String(), got.Level)
			require.Equal(t, LogText, got.Msg)
			require.Equal(t, CustomFieldVal, got.CustomVal)
		})
		buffer.Reset()
	}
}

func TestZerologBuild(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	data, err := logger.Build().FromBuffer(buff).Level("info").Make()
	require.NoError(t, err)
	require.NotNil(t, data)
	require.Equal(t, 0, buff.Len())

	l := data.Logger()
	l.Debug("hidden")
	require.Equal(t, 0, buff.Len())

	l.Warn("relay dropped frame", "channel", "abc", "error", errors.New("boom"), "dangling")

	var got map[string]any
	require.NoError(t, json.Unmarshal(buff.Bytes(), &got))
	require.Equal(t, "warn", got["level"])
	require.Equal(t, "relay dropped frame", got["message"])
	require.Equal(t, "abc", got["channel"])
	require.Equal(t, "boom", got["error"])
	require.Equal(t, "dangling", got["!BADKEY"])
	require.NoError(t, data.Close())
}

func TestNop(t *testing.T) {
	require.NotPanics(t, func() {
		logger.OrNop(nil).Error("ignored", "k", 1)
		logger.Nop().Info("ignored")
	})
}
