package export

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// PDFArticle is the content of an article PDF.
type PDFArticle struct {
	Title       string
	Author      string
	Section     string
	Description string
	Published   *time.Time
	Tags        []string
	URL         string
	Content     string // markdown
	SiteTitle   string
}

var (
	headingLine = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	inlineMarks = regexp.MustCompile("[*_`]+")
	linkMarkup  = regexp.MustCompile(`!?\[([^\]]*)\]\(([^)]*)\)`)
)

// WriteArticlePDF lays out an article as an A4 document: title, a metadata
// line, the description, then the content with headings in bold.
func WriteArticlePDF(w io.Writer, a PDFArticle) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(a.Title, true)
	pdf.SetAuthor(a.Author, true)
	pdf.SetCreator(a.SiteTitle, true)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(100, 10, tr(a.SiteTitle), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 10, pageLabel(pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 9, tr(a.Title), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.MultiCell(0, 5, tr(metaLine(a)), "", "L", false)
	if a.URL != "" {
		pdf.MultiCell(0, 5, tr(a.URL), "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if a.Description != "" {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 6, tr(a.Description), "", "L", false)
		pdf.Ln(4)
	}

	for _, block := range paragraphs(a.Content) {
		if m := headingLine.FindStringSubmatch(block); m != nil {
			size := 16 - 2*float64(len(m[1])-1)
			if size < 11 {
				size = 11
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, size*0.5, tr(plain(m[2])), "", "L", false)
			pdf.Ln(2)
			continue
		}
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(plain(block)), "", "L", false)
		pdf.Ln(3)
	}

	return pdf.Output(w)
}

func metaLine(a PDFArticle) string {
	var parts []string
	if a.Author != "" {
		parts = append(parts, "By "+a.Author)
	}
	if a.Published != nil {
		parts = append(parts, a.Published.Format("2 January 2006"))
	}
	if a.Section != "" {
		parts = append(parts, a.Section)
	}
	if len(a.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(a.Tags, ", "))
	}
	return strings.Join(parts, "  |  ")
}

// paragraphs splits markdown into blocks separated by blank lines; headings
// are always their own block.
func paragraphs(src string) []string {
	var blocks []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case headingLine.MatchString(line):
			flush()
			blocks = append(blocks, line)
		default:
			cur = append(cur, line)
		}
	}
	flush()
	return blocks
}

func plain(s string) string {
	s = linkMarkup.ReplaceAllString(s, "$1")
	return inlineMarks.ReplaceAllString(s, "")
}

func pageLabel(n int) string {
	return "Page " + strconv.Itoa(n)
}
