package names

import (
	"sort"
	"strings"

	"idverify/internal/fuzzy"
	"idverify/internal/ocr"
)

type wordLine struct {
	words   []ocr.Word
	centerY float64
	height  float64
}

// ExtractFromWords finds the name among OCR words using their positions.
// Only words in the top part of the page and above the confidence floor are
// considered. Words are grouped into lines by vertical proximity, lines of
// 2-4 capitalized words become candidates, and candidates sharing the most
// words with hint win, then the highest mean confidence. pageHeight may be
// zero, in which case the lowest word edge is used.
func (e *Extractor) ExtractFromWords(words []ocr.Word, pageHeight int, hint string) *Candidate {
	if len(words) == 0 {
		return nil
	}
	if pageHeight <= 0 {
		for _, w := range words {
			pageHeight = max(pageHeight, w.BoundingBox.Bottom())
		}
	}
	cutoff := float64(pageHeight) * e.config.TopFraction

	var kept []ocr.Word
	for _, w := range words {
		if w.Confidence < e.config.WordConfidenceMin {
			continue
		}
		if pageHeight > 0 && float64(w.BoundingBox.Y) > cutoff {
			continue
		}
		kept = append(kept, w)
	}

	type scored struct {
		Candidate
		overlap int
	}
	var best *scored
	hintWords := strings.Fields(strings.ToUpper(hint))

	for _, line := range groupLines(kept) {
		text := lineText(line)
		if !nameLineRe.MatchString(text) || isInstitutional(text) {
			continue
		}
		c := scored{
			Candidate: Candidate{Text: text, Source: SourceWordPosition, Confidence: meanConfidence(line)},
			overlap:   hintOverlap(hintWords, line),
		}
		if best == nil || c.overlap > best.overlap ||
			(c.overlap == best.overlap && c.Confidence > best.Confidence) {
			best = &c
		}
	}

	if best == nil {
		e.log.Debug().Int("words", len(words)).Int("kept", len(kept)).Msg("No name line among OCR words")
		return nil
	}
	e.log.Debug().
		Str("name", best.Text).
		Int("hint_overlap", best.overlap).
		Float64("confidence", best.Confidence).
		Msg("Name extracted from word positions")
	return &best.Candidate
}

// ExtractBest picks the holder name from a full OCR result. A verbatim hint
// hit in the text wins, then the word-position extractor when the provider
// returned words, then the remaining text strategies.
func (e *Extractor) ExtractBest(ext *ocr.Extraction, hint string) *Candidate {
	if ext == nil {
		return nil
	}
	if name := findHint(ext.Text, hint); name != "" {
		return &Candidate{Text: name, Source: SourceHint, Confidence: strategies[0].confidence}
	}
	if c := e.ExtractFromWords(ext.Words, ext.PageHeight, hint); c != nil {
		return c
	}
	return e.Extract(ext.Text, "")
}

// groupLines clusters words whose vertical centers are within half a word
// height of the running line center, then orders each line left to right.
func groupLines(words []ocr.Word) [][]ocr.Word {
	sorted := make([]ocr.Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BoundingBox.CenterY() < sorted[j].BoundingBox.CenterY()
	})

	var lines []wordLine
	for _, w := range sorted {
		cy := float64(w.BoundingBox.CenterY())
		h := float64(max(w.BoundingBox.Height, 1))
		if n := len(lines); n > 0 {
			cur := &lines[n-1]
			tolerance := max(cur.height, h) / 2
			if cy-cur.centerY <= tolerance {
				count := float64(len(cur.words))
				cur.centerY = (cur.centerY*count + cy) / (count + 1)
				cur.height = (cur.height*count + h) / (count + 1)
				cur.words = append(cur.words, w)
				continue
			}
		}
		lines = append(lines, wordLine{words: []ocr.Word{w}, centerY: cy, height: h})
	}

	out := make([][]ocr.Word, len(lines))
	for i, l := range lines {
		sort.SliceStable(l.words, func(a, b int) bool {
			return l.words[a].BoundingBox.X < l.words[b].BoundingBox.X
		})
		out[i] = l.words
	}
	return out
}

func lineText(line []ocr.Word) string {
	parts := make([]string, len(line))
	for i, w := range line {
		parts[i] = strings.TrimSpace(w.Text)
	}
	return strings.Join(parts, " ")
}

func meanConfidence(line []ocr.Word) float64 {
	var sum float64
	for _, w := range line {
		sum += w.Confidence
	}
	return sum / float64(len(line))
}

// hintOverlap counts hint words equal to some line word, allowing the
// rn/m confusion.
func hintOverlap(hintWords []string, line []ocr.Word) int {
	n := 0
	for _, h := range hintWords {
		for _, w := range line {
			if fuzzy.EqualUnderOCR(h, strings.ToUpper(w.Text)) {
				n++
				break
			}
		}
	}
	return n
}
