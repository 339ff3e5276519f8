package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// TranscriptCourse is one graded course line on a transcript.
type TranscriptCourse struct {
	CourseCode string
	CourseName string
	Credits    int
	MidTerm1   float64
	MidTerm2   float64
	FinalTerm  float64
	Total      float64
}

// Transcript holds everything rendered onto a student transcript PDF.
type Transcript struct {
	StudentName    string
	StudentID      string
	DepartmentName string
	SessionName    string
	SessionYear    string
	Courses        []TranscriptCourse
	AverageMarks   float64
	Grade          string
	GradePoints    float64
}

// TranscriptPDFExporter renders transcripts as PDF documents.
type TranscriptPDFExporter struct{}

// NewTranscriptPDFExporter constructs the exporter.
func NewTranscriptPDFExporter() *TranscriptPDFExporter {
	return &TranscriptPDFExporter{}
}

// Render produces the transcript PDF bytes.
func (e *TranscriptPDFExporter) Render(t Transcript) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "ACADEMIC TRANSCRIPT", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Student: %s (%s)", t.StudentName, t.StudentID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Department: %s", t.DepartmentName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Session: %s %s", t.SessionName, t.SessionYear), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	headers := []string{"Code", "Course", "Credits", "Mid 1", "Mid 2", "Final", "Total"}
	widths := []float64{22, 68, 18, 18, 18, 18, 18}

	pdf.SetFont("Arial", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, course := range t.Courses {
		cols := []string{
			course.CourseCode,
			course.CourseName,
			fmt.Sprintf("%d", course.Credits),
			fmt.Sprintf("%.1f", course.MidTerm1),
			fmt.Sprintf("%.1f", course.MidTerm2),
			fmt.Sprintf("%.1f", course.FinalTerm),
			fmt.Sprintf("%.1f", course.Total),
		}
		for i, col := range cols {
			pdf.CellFormat(widths[i], 7, col, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Average: %.2f    Grade: %s    Grade Points: %.2f", t.AverageMarks, t.Grade, t.GradePoints), "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render transcript pdf: %w", err)
	}
	return buf.Bytes(), nil
}
