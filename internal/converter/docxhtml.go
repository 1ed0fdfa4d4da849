package converter

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

var errNoDocumentBody = errors.New("word/document.xml not found")

// runStyle is the character formatting of one w:r.
type runStyle struct {
	bold, italic, underline, strike bool
}

// paragraph collects the rendered runs of one w:p until its end tag.
type paragraph struct {
	tag   string
	align string
	list  bool
	body  strings.Builder
}

// docxToHTML renders the main body of a .docx package as simple HTML:
// paragraphs, headings, character formatting, breaks, lists and tables.
// Images, headers, footers and section layout are not rendered.
func docxToHTML(docx []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(docx), int64(len(docx)))
	if err != nil {
		return "", fmt.Errorf("open docx package: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errNoDocumentBody
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	body, err := renderBody(rc)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><style>")
	out.WriteString("body{font-family:Calibri,Carlito,Arial,sans-serif;font-size:11pt;line-height:1.15}")
	out.WriteString("p{margin:0 0 8pt 0;white-space:pre-wrap}")
	out.WriteString("p.li{padding-left:18pt;text-indent:-12pt}")
	out.WriteString("table{border-collapse:collapse;margin:0 0 8pt 0}")
	out.WriteString("td{border:1px solid #999;padding:2pt 5pt;vertical-align:top}")
	out.WriteString("</style></head><body>")
	out.WriteString(body)
	out.WriteString("</body></html>")
	return out.String(), nil
}

func renderBody(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out   strings.Builder
		para  *paragraph
		style runStyle
		inPPr bool
		inRPr bool
		inT   bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				para = &paragraph{tag: "p"}
			case "pStyle":
				if para != nil {
					para.tag = headingTag(attr(t, "val"))
				}
			case "jc":
				if para != nil {
					para.align = alignment(attr(t, "val"))
				}
			case "pPr":
				inPPr = true
			case "numPr":
				if para != nil {
					para.list = true
				}
			case "r":
				style = runStyle{}
			case "rPr":
				inRPr = true
			case "b":
				if inRPr {
					style.bold = toggleOn(t)
				}
			case "i":
				if inRPr {
					style.italic = toggleOn(t)
				}
			case "u":
				if inRPr {
					v := attr(t, "val")
					style.underline = v != "none" && v != "0"
				}
			case "strike", "dstrike":
				if inRPr {
					style.strike = toggleOn(t)
				}
			case "t":
				inT = true
			case "tab":
				if para != nil && !inPPr {
					para.body.WriteString("\t")
				}
			case "br", "cr":
				if para != nil {
					para.body.WriteString("<br>")
				}
			case "tbl":
				out.WriteString("<table>")
			case "tr":
				out.WriteString("<tr>")
			case "tc":
				out.WriteString("<td>")
			}

		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				if para != nil {
					writeParagraph(&out, para)
					para = nil
				}
			case "pPr":
				inPPr = false
			case "rPr":
				inRPr = false
			case "t":
				inT = false
			case "tbl":
				out.WriteString("</table>")
			case "tr":
				out.WriteString("</tr>")
			case "tc":
				out.WriteString("</td>")
			}

		case xml.CharData:
			if inT && para != nil {
				writeRun(&para.body, style, string(t))
			}
		}
	}
	return out.String(), nil
}

func writeParagraph(out *strings.Builder, p *paragraph) {
	out.WriteString("<" + p.tag)
	if p.list && p.tag == "p" {
		out.WriteString(` class="li"`)
	}
	if p.align != "" {
		out.WriteString(` style="text-align:` + p.align + `"`)
	}
	out.WriteString(">")
	if p.list {
		out.WriteString("&bull;&nbsp;")
	}
	out.WriteString(p.body.String())
	out.WriteString("</" + p.tag + ">")
}

func writeRun(b *strings.Builder, s runStyle, text string) {
	var open, closing []string
	if s.bold {
		open, closing = append(open, "<b>"), append([]string{"</b>"}, closing...)
	}
	if s.italic {
		open, closing = append(open, "<i>"), append([]string{"</i>"}, closing...)
	}
	if s.underline {
		open, closing = append(open, "<u>"), append([]string{"</u>"}, closing...)
	}
	if s.strike {
		open, closing = append(open, "<s>"), append([]string{"</s>"}, closing...)
	}
	b.WriteString(strings.Join(open, ""))
	b.WriteString(html.EscapeString(text))
	b.WriteString(strings.Join(closing, ""))
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// toggleOn reads an OOXML on/off property: present without val means on.
func toggleOn(e xml.StartElement) bool {
	switch attr(e, "val") {
	case "0", "false", "off":
		return false
	default:
		return true
	}
}

func headingTag(style string) string {
	s := strings.ToLower(style)
	switch {
	case s == "title":
		return "h1"
	case s == "subtitle":
		return "h2"
	case strings.HasPrefix(s, "heading") && len(s) == len("heading")+1:
		if d := s[len(s)-1]; d >= '1' && d <= '6' {
			return "h" + string(d)
		}
	}
	return "p"
}

func alignment(v string) string {
	switch v {
	case "center":
		return "center"
	case "right", "end":
		return "right"
	case "both", "distribute":
		return "justify"
	default:
		return ""
	}
}
