package service

import (
	"encoding/json"

	"github.com/JakeFAU/docbridge/internal/conversion"
)

// ConvertRequest is the input of the convert tool.
type ConvertRequest struct {
	InputRef  string `json:"input_ref"`
	OutputRef string `json:"output_ref,omitempty"`
	// UnitSelector is "0,1,2" or "0-5"; empty converts every page.
	UnitSelector string `json:"unit_selector,omitempty"`
	Credential   string `json:"credential,omitempty"`
}

// ConvertResponse is the output of the convert tool. Units holds the selected
// index list or the string "all". Failed responses leave the conversion fields
// zero and fill Error and ErrorKind. MarshalJSON picks the wire shape from
// Success.
type ConvertResponse struct {
	Success         bool    `json:"success"`
	RunID           string  `json:"run_id,omitempty"`
	InputRef        string  `json:"input_ref"`
	OutputRef       string  `json:"output_ref,omitempty"`
	SizeMB          float64 `json:"size_mb,omitempty"`
	Units           any     `json:"units,omitempty"`
	TotalUnits      int     `json:"total_units,omitempty"`
	UnitsConverted  int     `json:"units_converted,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	ArtifactURI     string  `json:"artifact_uri,omitempty"`
	SHA256          string  `json:"sha256,omitempty"`
	Message         string  `json:"message"`

	Error     string          `json:"error,omitempty"`
	ErrorKind conversion.Kind `json:"error_kind,omitempty"`
}

// convertSuccess is the success wire shape; every result field is always
// present, zero or not.
type convertSuccess struct {
	Success         bool    `json:"success"`
	RunID           string  `json:"run_id,omitempty"`
	InputRef        string  `json:"input_ref"`
	OutputRef       string  `json:"output_ref"`
	SizeMB          float64 `json:"size_mb"`
	Units           any     `json:"units"`
	TotalUnits      int     `json:"total_units"`
	UnitsConverted  int     `json:"units_converted"`
	DurationSeconds float64 `json:"duration_seconds"`
	ArtifactURI     string  `json:"artifact_uri,omitempty"`
	SHA256          string  `json:"sha256,omitempty"`
	Message         string  `json:"message"`
}

type convertFailureJSON struct {
	Success   bool            `json:"success"`
	RunID     string          `json:"run_id,omitempty"`
	InputRef  string          `json:"input_ref"`
	OutputRef string          `json:"output_ref,omitempty"`
	Error     string          `json:"error"`
	ErrorKind conversion.Kind `json:"error_kind"`
	Message   string          `json:"message"`
}

// MarshalJSON writes the success shape or the failure shape.
func (r ConvertResponse) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(convertFailureJSON{
			RunID:     r.RunID,
			InputRef:  r.InputRef,
			OutputRef: r.OutputRef,
			Error:     r.Error,
			ErrorKind: r.ErrorKind,
			Message:   r.Message,
		})
	}
	return json.Marshal(convertSuccess{
		Success:         true,
		RunID:           r.RunID,
		InputRef:        r.InputRef,
		OutputRef:       r.OutputRef,
		SizeMB:          r.SizeMB,
		Units:           r.Units,
		TotalUnits:      r.TotalUnits,
		UnitsConverted:  r.UnitsConverted,
		DurationSeconds: r.DurationSeconds,
		ArtifactURI:     r.ArtifactURI,
		SHA256:          r.SHA256,
		Message:         r.Message,
	})
}

// InfoRequest is the input of the get_info tool.
type InfoRequest struct {
	InputRef string `json:"input_ref"`
}

// InfoResponse is the output of the get_info tool.
type InfoResponse struct {
	Success     bool                   `json:"success"`
	Path        string                 `json:"path"`
	UnitCount   int                    `json:"unit_count"`
	SizeMB      float64                `json:"size_mb"`
	IsProtected bool                   `json:"is_protected"`
	Descriptor  *conversion.Descriptor `json:"descriptor,omitempty"`
	Message     string                 `json:"message"`

	Error     string          `json:"error,omitempty"`
	ErrorKind conversion.Kind `json:"error_kind,omitempty"`
}
