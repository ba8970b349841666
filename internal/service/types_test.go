package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/docbridge/internal/conversion"
)

func decodeShape(t *testing.T, resp ConvertResponse) map[string]any {
	t.Helper()
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestConvertResponseSuccessKeepsZeroResultFields(t *testing.T) {
	t.Parallel()

	body := decodeShape(t, ConvertResponse{
		Success:         true,
		InputRef:        "tiny.pdf",
		OutputRef:       "tiny.docx",
		SizeMB:          conversion.Round2(conversion.SizeMB(4096)),
		Units:           "all",
		TotalUnits:      1,
		UnitsConverted:  1,
		DurationSeconds: conversion.Round2(0.004),
		Message:         "ok",
	})

	for _, key := range []string{
		"success", "input_ref", "output_ref", "size_mb", "units",
		"total_units", "units_converted", "duration_seconds", "message",
	} {
		require.Contains(t, body, key)
	}
	require.InDelta(t, 0.0, body["size_mb"], 1e-9)
	require.InDelta(t, 0.0, body["duration_seconds"], 1e-9)
	require.NotContains(t, body, "error")
	require.NotContains(t, body, "error_kind")
}

func TestConvertResponseFailureShape(t *testing.T) {
	t.Parallel()

	body := decodeShape(t, ConvertResponse{
		InputRef:  "locked.pdf",
		Error:     "a password is required",
		ErrorKind: conversion.KindAuthenticationRequired,
		Message:   "Conversion failed",
	})

	require.Equal(t, false, body["success"])
	require.Equal(t, "locked.pdf", body["input_ref"])
	require.Equal(t, "a password is required", body["error"])
	require.Equal(t, string(conversion.KindAuthenticationRequired), body["error_kind"])
	for _, key := range []string{"size_mb", "units", "total_units", "units_converted", "duration_seconds", "output_ref"} {
		require.NotContains(t, body, key)
	}

	var back ConvertResponse
	raw, err := json.Marshal(ConvertResponse{InputRef: "x.pdf", ErrorKind: conversion.KindNotFound})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, conversion.KindNotFound, back.ErrorKind)
}
