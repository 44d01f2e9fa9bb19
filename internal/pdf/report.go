package pdf

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"homebase/internal/models"
)

// Generator renders party reports; an interface so handlers can be tested
// without producing real PDFs.
type Generator interface {
	TaskReport(w io.Writer, data TaskReportData) error
}

type TaskReportData struct {
	PartyName   string
	GeneratedAt time.Time
	Projects    []models.Project
	Tasks       []models.Task
	MemberNames map[int64]string
}

type ReportGenerator struct {
	fontName string
}

func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{fontName: "Helvetica"}
}

func (g *ReportGenerator) TaskReport(w io.Writer, data TaskReportData) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("HomeBase tasks — %s", data.PartyName), true)
	pdf.SetAuthor("HomeBase", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "Task report", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 12)
	sub := fmt.Sprintf("%s  —  %s", data.PartyName, data.GeneratedAt.Format("2006-01-02"))
	pdf.CellFormat(0, 7, sub, "", 1, "C", false, 0, "")
	g.hr(pdf)
	pdf.Ln(3)

	byProject := map[string][]models.Task{}
	var order []string
	add := func(key string, t models.Task) {
		if _, ok := byProject[key]; !ok {
			order = append(order, key)
		}
		byProject[key] = append(byProject[key], t)
	}
	codes := map[int64]string{}
	for _, p := range data.Projects {
		codes[p.ID] = fmt.Sprintf("[%s] %s", p.Code, p.Name)
	}
	for _, t := range data.Tasks {
		key := "No project"
		if t.ProjectID != nil {
			if name, ok := codes[*t.ProjectID]; ok {
				key = name
			}
		}
		add(key, t)
	}

	for _, key := range order {
		g.sectionTitle(pdf, key)
		for _, t := range byProject[key] {
			assignee := "unassigned"
			if t.AssignedTo != nil {
				if name, ok := data.MemberNames[*t.AssignedTo]; ok && name != "" {
					assignee = name
				} else {
					assignee = fmt.Sprintf("user %d", *t.AssignedTo)
				}
			}
			due := ""
			if t.DueDate != nil {
				due = " due " + t.DueDate.Format("2006-01-02")
			}
			line := fmt.Sprintf("%s  %s  (%s, %s, %s%s)",
				t.DisplayCode(), t.Title, t.Status, t.Priority, assignee, due)
			pdf.SetFont(g.fontName, "", 11)
			pdf.MultiCell(0, 6, line, "", "L", false)
		}
		pdf.Ln(2)
		g.hr(pdf)
	}

	if len(data.Tasks) == 0 {
		pdf.SetFont(g.fontName, "", 11)
		pdf.MultiCell(0, 6, "No tasks match the report filter.", "", "L", false)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Page %d/{nb}", pdf.PageNo()),
			"", 0, "C", false, 0, "",
		)
	})

	return pdf.Output(w)
}

func (g *ReportGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ReportGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}
