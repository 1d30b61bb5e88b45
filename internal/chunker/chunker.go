package chunker

import (
	"regexp"
	"strings"
)

const (
	DefaultChunkSize = 1200
	DefaultOverlap   = 200
)

var (
	paragraphRegex = regexp.MustCompile(`\n\s*\n`)
	sentenceRegex  = regexp.MustCompile(`[^.!?\n]+[.!?\n]*\s*`)
)

// Chunker splits extracted document text into overlapping fragments sized
// for the embedding model. Output is deterministic for identical input so
// checksum-driven re-ingestion stays idempotent.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 6
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text on paragraph boundaries where possible, falling back to
// sentences and finally hard rune splits. Consecutive chunks share trailing
// units up to the overlap budget.
func (c *Chunker) Chunk(text string) []string {
	units := c.splitUnits(text)
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var cur []string
	curLen := 0
	fresh := 0

	flush := func() {
		if fresh == 0 {
			return
		}
		chunks = append(chunks, strings.Join(cur, "\n\n"))
		cur, curLen = c.overlapTail(cur)
		fresh = 0
	}

	for _, unit := range units {
		ulen := len([]rune(unit))
		if curLen > 0 && curLen+ulen > c.size {
			if fresh > 0 {
				flush()
			} else {
				// carried overlap alone already exceeds the budget
				cur = nil
				curLen = 0
			}
		}
		cur = append(cur, unit)
		curLen += ulen
		fresh++
	}
	flush()
	return chunks
}

// splitUnits yields ordered text units no longer than the chunk size:
// paragraphs first, oversize paragraphs by sentence, oversize sentences by
// hard rune split.
func (c *Chunker) splitUnits(text string) []string {
	var units []string
	for _, para := range paragraphRegex.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= c.size {
			units = append(units, para)
			continue
		}
		for _, sentence := range sentenceRegex.FindAllString(para, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			runes := []rune(sentence)
			for len(runes) > c.size {
				units = append(units, string(runes[:c.size]))
				runes = runes[c.size:]
			}
			if len(runes) > 0 {
				units = append(units, string(runes))
			}
		}
	}
	return units
}

// overlapTail keeps the trailing units that fit the overlap budget so the
// next chunk preserves cross-boundary context.
func (c *Chunker) overlapTail(units []string) ([]string, int) {
	if c.overlap == 0 {
		return nil, 0
	}
	total := 0
	var tail []string
	for i := len(units) - 1; i >= 0; i-- {
		ulen := len([]rune(units[i]))
		if total+ulen > c.overlap {
			break
		}
		total += ulen
		tail = append([]string{units[i]}, tail...)
	}
	return tail, total
}
