// Package pdf reads PDFs with go-fitz, decrypts them with pdfcpu, and converts
// their text into DOCX packages.
package pdf
