package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slideNamePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// pptxText extracts text from an OOXML presentation.
// Slides are read in deck order and joined with blank lines so the chunker
// sees a slide boundary as a natural break.
func pptxText(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pptx archive: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range reader.File {
		m := slideNamePattern.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, file: file})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("pptx archive contains no slides")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var out strings.Builder
	for i, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("opening slide %d: %w", s.num, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading slide %d: %w", s.num, err)
		}

		text, err := parseSlideXML(content)
		if err != nil {
			return "", fmt.Errorf("parsing slide %d: %w", s.num, err)
		}
		if i > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
	}
	return out.String(), nil
}

// parseSlideXML walks the slide markup collecting the text runs.
// DrawingML nests runs at varying depths, so a token walk over <a:t>
// elements is more robust than a fixed struct mapping.
func parseSlideXML(content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var (
		out    strings.Builder
		inText bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decoding slide xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				// Paragraph boundary within a text body.
				out.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
