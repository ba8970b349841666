package service

// Parameter describes one tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Tool describes an operation exposed by the service.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	// Streaming marks tools that emit progress notifications.
	Streaming bool `json:"streaming"`
}

// Instructions is the service-level summary shown to tool clients.
const Instructions = "Convert PDF documents to editable DOCX format. " +
	"Supports partial page conversion and encrypted PDFs with password."

// Tools returns the descriptors of every tool the service implements.
func Tools() []Tool {
	return []Tool{
		{
			Name:        "convert",
			Description: "Convert PDF file to DOCX format.",
			Streaming:   true,
			Parameters: []Parameter{
				{Name: "input_ref", Type: "string", Required: true, Description: "Path to the input PDF file"},
				{
					Name: "output_ref", Type: "string",
					Description: "Path for the output DOCX file. Defaults to the input path with a .docx extension",
				},
				{
					Name: "unit_selector", Type: "string",
					Description: `Zero-based page numbers to convert, either "0,1,2" or "0-5"`,
				},
				{Name: "credential", Type: "string", Description: "Password for encrypted PDFs"},
			},
		},
		{
			Name:        "get_info",
			Description: "Get metadata information about a PDF file.",
			Parameters: []Parameter{
				{Name: "input_ref", Type: "string", Required: true, Description: "Path to the PDF file"},
			},
		},
	}
}
